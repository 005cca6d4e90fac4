// Package transport carries bytes between the panel and the controller.
//
// The link is a dedicated point-to-point, full-duplex byte channel: a UART
// on the appliance, a TCP connection or an in-process pipe on a development
// bench. Port wraps any io.ReadWriteCloser. A single receive goroutine plays
// the part of the UART receive interrupt: it does nothing but move bytes into
// a bounded queue that the owning node drains from its own loop.
//
// # Line faults
//
// A byte that arrived with a framing or parity error is delivered as
// FaultByte (0xFF). Adapters report such bytes by returning a *LineError from
// Read. FaultByte is never a valid opcode or digit, so decoders can skip it.
//
// # Discovery
//
// TCP bench links can be found over mDNS: the controller advertises
// ServiceType and the panel browses for it.
package transport
