package wire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockline/lockline-go/pkg/log"
	"github.com/lockline/lockline-go/pkg/transport"
)

// byteQueue is a ByteSource over a fixed slice.
type byteQueue struct {
	data []byte
}

func (q *byteQueue) Receive(context.Context) (byte, error) {
	if len(q.data) == 0 {
		return 0, transport.ErrClosed
	}
	b := q.data[0]
	q.data = q.data[1:]
	return b, nil
}

type captureLogger struct {
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) { c.events = append(c.events, e) }

func TestOpcodeTable(t *testing.T) {
	tests := []struct {
		op         Opcode
		value      byte
		name       string
		hasPayload bool
		isReply    bool
	}{
		{OpSetNewPassword, 0x0A, "SET_NEW_PASSWORD", true, false},
		{OpPasswordIsSaved, 0x0B, "PASSWORD_IS_SAVED", false, false},
		{OpChangePassword, 0x0C, "CHANGE_PASSWORD", true, false},
		{OpOpenDoor, 0x0D, "OPEN_DOOR", true, false},
		{OpPasswordIsRight, 0x0E, "PASSWORD_IS_RIGHT", false, true},
		{OpPasswordIsWrong, 0x0F, "PASSWORD_IS_WRONG", false, true},
		{OpPrecedeChange, 0x01, "PRECEDE_CHANGE", false, true},
		{OpDontChange, 0x02, "DONT_CHANGE", false, true},
		{OpPasswordIsChanged, 0x03, "PASSWORD_IS_CHANGED", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.value, EncodeCommand(tt.op))
			assert.Equal(t, tt.name, tt.op.String())
			assert.True(t, tt.op.IsValid())
			assert.Equal(t, tt.hasPayload, tt.op.HasPayload())
			assert.Equal(t, tt.isReply, tt.op.IsReply())
		})
	}

	assert.False(t, Opcode(0xFF).IsValid())
	assert.False(t, Opcode(0x00).IsValid())
	assert.Equal(t, "UNKNOWN(0xFF)", Opcode(0xFF).String())
}

func TestOpcodeAccepts(t *testing.T) {
	assert.True(t, OpOpenDoor.Accepts(OpPasswordIsRight))
	assert.True(t, OpOpenDoor.Accepts(OpPasswordIsWrong))
	assert.False(t, OpOpenDoor.Accepts(OpPrecedeChange))
	assert.True(t, OpChangePassword.Accepts(OpPrecedeChange))
	assert.True(t, OpChangePassword.Accepts(OpDontChange))
	assert.False(t, OpChangePassword.Accepts(OpPasswordIsRight))
	assert.False(t, OpSetNewPassword.Accepts(OpPasswordIsRight))

	assert.True(t, OpOpenDoor.ExpectsReply())
	assert.True(t, OpChangePassword.ExpectsReply())
	assert.False(t, OpSetNewPassword.ExpectsReply())
	assert.False(t, OpPasswordIsChanged.ExpectsReply())
}

func TestCredentialMatchesEveryPosition(t *testing.T) {
	stored := Credential{1, 2, 3, 4, 5}
	assert.True(t, stored.Matches(Credential{1, 2, 3, 4, 5}))

	for i := 0; i < CredentialLength; i++ {
		for delta := uint8(1); delta <= 9; delta++ {
			candidate := stored
			candidate[i] = (candidate[i] + delta) % 10
			assert.False(t, stored.Matches(candidate), "position %d off by %d matched", i, delta)
		}
	}
}

func TestCredentialInvalidNeverMatches(t *testing.T) {
	bad := Credential{1, 2, 3, 4, 0xFF}
	assert.False(t, bad.Valid())
	assert.False(t, bad.Matches(bad))
	assert.False(t, Credential{1, 2, 3, 4, 5}.Matches(Credential{1, 2, 3, 4, 10}))
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCredential)
	assert.NoError(t, Credential{}.Validate())
}

func TestParseCredential(t *testing.T) {
	c, err := ParseCredential("12345")
	require.NoError(t, err)
	assert.Equal(t, Credential{1, 2, 3, 4, 5}, c)
	assert.Equal(t, "12345", c.Digits())
	assert.Equal(t, "*****", c.String())

	for _, in := range []string{"", "1234", "123456", "12a45", "12 45"} {
		_, err := ParseCredential(in)
		assert.ErrorIs(t, err, ErrInvalidCredential, "input %q", in)
	}
}

func TestCredentialFramingIsIdentity(t *testing.T) {
	c := Credential{9, 0, 8, 1, 7}
	b := EncodeCredential(c)
	assert.Equal(t, [5]byte{9, 0, 8, 1, 7}, b)
	assert.Equal(t, c, DecodeCredential(b))
}

func TestFrameEncode(t *testing.T) {
	assert.Equal(t, []byte{0x0D, 1, 2, 3, 4, 5}, Request(OpOpenDoor, Credential{1, 2, 3, 4, 5}).Encode())
	assert.Equal(t, []byte{0x0E}, Reply(OpPasswordIsRight).Encode())
	assert.Equal(t, 6, Request(OpSetNewPassword, Credential{}).Size())
	assert.Equal(t, 1, Reply(OpDontChange).Size())
}

func TestReadFrameSkipsFaultBytes(t *testing.T) {
	q := &byteQueue{data: []byte{FaultByte, 0x0C, 9, FaultByte, 9, 9, 9, 9, 0x0E}}

	f, skipped, err := ReadFrame(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, OpChangePassword, f.Opcode)
	assert.Equal(t, Credential{9, 9, 9, 9, 9}, f.Credential)
	assert.Equal(t, 2, skipped)

	f, skipped, err = ReadFrame(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, OpPasswordIsRight, f.Opcode)
	assert.Zero(t, skipped)
}

func TestReadFrameLostPayloadByteShiftsFrame(t *testing.T) {
	// The third digit was lost on the line; its fault byte is skipped and
	// the following opcode is read as the last digit.
	q := &byteQueue{data: []byte{0x0D, 1, 2, FaultByte, 4, 5, 0x0D, 1, 2, 3, 4, 5}}

	f, skipped, err := ReadFrame(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, OpOpenDoor, f.Opcode)
	assert.Equal(t, Credential{1, 2, 4, 5, 0x0D}, f.Credential)
	assert.False(t, f.Credential.Valid())
	assert.Equal(t, 1, skipped)
}

func TestReadFrameUnknownOpcode(t *testing.T) {
	q := &byteQueue{data: []byte{0x42, 0x0F}}

	f, _, err := ReadFrame(context.Background(), q)
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	assert.Equal(t, Opcode(0x42), f.Opcode)

	f, _, err = ReadFrame(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, OpPasswordIsWrong, f.Opcode)
}

func TestReadFrameKeepsNonDigitPayload(t *testing.T) {
	q := &byteQueue{data: []byte{0x0D, 1, 2, 3, 4, 0x30}}
	f, _, err := ReadFrame(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, f.Credential.Valid())
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	q := &byteQueue{data: []byte{0x0D, 1, 2}}
	_, _, err := ReadFrame(context.Background(), q)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestConnTracesWithoutDigits(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	panelLog, ctrlLog := &captureLogger{}, &captureLogger{}
	panel := NewConn(a)
	panel.SetLogger(panelLog, log.RolePanel)
	ctrl := NewConn(b)
	ctrl.SetLogger(ctrlLog, log.RoleController)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- panel.WriteFrame(ctx, Request(OpOpenDoor, Credential{1, 2, 3, 4, 5}))
	}()

	f, err := ctrl.ReadFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	assert.Equal(t, Credential{1, 2, 3, 4, 5}, f.Credential)

	go func() {
		errc <- ctrl.WriteReply(ctx, OpPasswordIsRight, time.Now())
	}()
	reply, err := panel.ReadFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	assert.Equal(t, OpPasswordIsRight, reply.Opcode)

	require.Len(t, panelLog.events, 4)
	out := panelLog.events[0]
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, a.ID(), out.ConnectionID)
	require.NotNil(t, out.Frame)
	assert.Equal(t, []byte{0x0D}, out.Frame.Data)
	assert.True(t, out.Frame.Redacted)
	assert.Equal(t, 6, out.Frame.Size)

	require.Len(t, ctrlLog.events, 4)
	replyMsg := ctrlLog.events[3].Message
	require.NotNil(t, replyMsg)
	assert.Equal(t, "PASSWORD_IS_RIGHT", replyMsg.Name)
	assert.NotNil(t, replyMsg.ProcessingTime)
}

func TestConnReadErrorTraced(t *testing.T) {
	a, b := transport.Pipe()
	defer b.Close()
	c := NewConn(b)
	logger := &captureLogger{}
	c.SetLogger(logger, log.RoleController)

	require.NoError(t, a.Close())
	_, err := c.ReadFrame(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrClosed))
	require.Len(t, logger.events, 1)
	assert.Equal(t, log.CategoryError, logger.events[0].Category)
}
