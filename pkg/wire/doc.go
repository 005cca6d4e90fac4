// Package wire defines the lockline link protocol.
//
// Every message starts with a one-byte opcode. Request opcodes sent by the
// panel are followed by a five-byte credential, one digit (0-9) per byte.
// Replies from the controller are a bare opcode.
//
//	panel → controller   SET_NEW_PASSWORD     0x0A  d d d d d
//	panel → controller   CHANGE_PASSWORD      0x0C  d d d d d
//	panel → controller   OPEN_DOOR            0x0D  d d d d d
//	panel → controller   PASSWORD_IS_CHANGED  0x03  d d d d d
//	controller → panel   PASSWORD_IS_RIGHT    0x0E
//	controller → panel   PASSWORD_IS_WRONG    0x0F
//	controller → panel   PRECEDE_CHANGE       0x01
//	controller → panel   DONT_CHANGE          0x02
//
// 0x0B (PASSWORD_IS_SAVED) is reserved and never sent.
//
// The framing has no escaping and no checksum. The link is a dedicated wire
// between the two nodes; a shared or noisy transport would need both. Bytes
// that failed UART framing or parity arrive as 0xFF, which is neither an
// opcode nor a digit, and are skipped by the decoder. Inside a payload the
// next byte takes the skipped byte's place, so a byte that was truly lost
// shifts the frame and yields a wrong candidate rather than a detected fault.
package wire
