package wire

import "fmt"

// Opcode is the first byte of every frame.
type Opcode uint8

const (
	OpSetNewPassword    Opcode = 0x0A
	OpPasswordIsSaved   Opcode = 0x0B // reserved
	OpChangePassword    Opcode = 0x0C
	OpOpenDoor          Opcode = 0x0D
	OpPasswordIsRight   Opcode = 0x0E
	OpPasswordIsWrong   Opcode = 0x0F
	OpPrecedeChange     Opcode = 0x01
	OpDontChange        Opcode = 0x02
	OpPasswordIsChanged Opcode = 0x03
)

// String returns the protocol name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpSetNewPassword:
		return "SET_NEW_PASSWORD"
	case OpPasswordIsSaved:
		return "PASSWORD_IS_SAVED"
	case OpChangePassword:
		return "CHANGE_PASSWORD"
	case OpOpenDoor:
		return "OPEN_DOOR"
	case OpPasswordIsRight:
		return "PASSWORD_IS_RIGHT"
	case OpPasswordIsWrong:
		return "PASSWORD_IS_WRONG"
	case OpPrecedeChange:
		return "PRECEDE_CHANGE"
	case OpDontChange:
		return "DONT_CHANGE"
	case OpPasswordIsChanged:
		return "PASSWORD_IS_CHANGED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(o))
	}
}

// IsValid reports whether o is in the protocol vocabulary.
func (o Opcode) IsValid() bool {
	switch o {
	case OpSetNewPassword, OpPasswordIsSaved, OpChangePassword, OpOpenDoor,
		OpPasswordIsRight, OpPasswordIsWrong, OpPrecedeChange, OpDontChange,
		OpPasswordIsChanged:
		return true
	}
	return false
}

// IsRequest reports whether o is sent by the panel.
func (o Opcode) IsRequest() bool {
	switch o {
	case OpSetNewPassword, OpChangePassword, OpOpenDoor, OpPasswordIsChanged:
		return true
	}
	return false
}

// IsReply reports whether o is sent by the controller.
func (o Opcode) IsReply() bool {
	switch o {
	case OpPasswordIsRight, OpPasswordIsWrong, OpPrecedeChange, OpDontChange:
		return true
	}
	return false
}

// HasPayload reports whether a credential follows o on the link.
func (o Opcode) HasPayload() bool {
	return o.IsRequest()
}

// ExpectsReply reports whether the controller answers request o.
func (o Opcode) ExpectsReply() bool {
	return o == OpOpenDoor || o == OpChangePassword
}

// Accepts reports whether reply is a legal answer to request o.
func (o Opcode) Accepts(reply Opcode) bool {
	switch o {
	case OpOpenDoor:
		return reply == OpPasswordIsRight || reply == OpPasswordIsWrong
	case OpChangePassword:
		return reply == OpPrecedeChange || reply == OpDontChange
	}
	return false
}

// EncodeCommand returns the wire byte for o.
func EncodeCommand(o Opcode) byte {
	return byte(o)
}
