package wire

import (
	"context"
	"errors"
	"fmt"

	"github.com/lockline/lockline-go/pkg/transport"
)

// FaultByte is the value the transport substitutes for a byte that failed
// UART framing or parity checks.
const FaultByte = transport.FaultByte

// MaxFrameSize is the size of a request frame: opcode plus credential.
const MaxFrameSize = 1 + CredentialLength

// ErrUnknownOpcode is returned for a leading byte outside the vocabulary.
// The byte is consumed; the caller keeps reading.
var ErrUnknownOpcode = errors.New("wire: unknown opcode")

// Frame is one message on the link.
type Frame struct {
	Opcode Opcode

	// Credential is meaningful only when Opcode.HasPayload().
	Credential Credential
}

// Request builds a request frame carrying c.
func Request(op Opcode, c Credential) Frame {
	return Frame{Opcode: op, Credential: c}
}

// Reply builds a bare reply frame.
func Reply(op Opcode) Frame {
	return Frame{Opcode: op}
}

// Size returns the encoded length of f.
func (f Frame) Size() int {
	if f.Opcode.HasPayload() {
		return MaxFrameSize
	}
	return 1
}

// Encode returns the wire bytes of f.
func (f Frame) Encode() []byte {
	b := make([]byte, 0, MaxFrameSize)
	b = append(b, EncodeCommand(f.Opcode))
	if f.Opcode.HasPayload() {
		payload := EncodeCredential(f.Credential)
		b = append(b, payload[:]...)
	}
	return b
}

// ByteSource is the receive half of a link.
type ByteSource interface {
	Receive(ctx context.Context) (byte, error)
}

// ReadFrame reads one frame from src, discarding fault bytes wherever they
// appear. skipped reports how many were dropped. A payload byte that is not
// a digit is kept as received; callers check Credential.Valid.
func ReadFrame(ctx context.Context, src ByteSource) (f Frame, skipped int, err error) {
	return readFrame(ctx, src, nil)
}

// readFrame calls onOpcode, when set, after a payload-carrying opcode has
// been read and before its payload.
func readFrame(ctx context.Context, src ByteSource, onOpcode func(Opcode)) (f Frame, skipped int, err error) {
	var b byte
	for {
		b, err = src.Receive(ctx)
		if err != nil {
			return Frame{}, skipped, err
		}
		if b != FaultByte {
			break
		}
		skipped++
	}

	f.Opcode = Opcode(b)
	if !f.Opcode.IsValid() {
		return f, skipped, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, b)
	}
	if !f.Opcode.HasPayload() {
		return f, skipped, nil
	}
	if onOpcode != nil {
		onOpcode(f.Opcode)
	}

	var payload [CredentialLength]byte
	for i := 0; i < CredentialLength; {
		b, err = src.Receive(ctx)
		if err != nil {
			return Frame{}, skipped, fmt.Errorf("wire: %s payload: %w", f.Opcode, err)
		}
		if b == FaultByte {
			skipped++
			continue
		}
		payload[i] = b
		i++
	}
	f.Credential = DecodeCredential(payload)
	return f, skipped, nil
}
