package wire

import (
	"context"
	"time"

	"github.com/lockline/lockline-go/pkg/log"
	"github.com/lockline/lockline-go/pkg/transport"
)

// Conn reads and writes frames on a link and traces them.
type Conn struct {
	link     transport.Link
	trace    log.Emitter
	onOpcode func(Opcode)
}

// NewConn wraps link. Tracing is off until SetLogger is called.
func NewConn(link transport.Link) *Conn {
	return &Conn{link: link}
}

// SetLogger enables protocol tracing for this connection.
func (c *Conn) SetLogger(logger log.Logger, role log.Role) {
	c.trace = log.Emitter{Logger: logger, Role: role, ConnectionID: c.link.ID()}
}

// OnOpcode registers fn to run between a request opcode and its payload.
func (c *Conn) OnOpcode(fn func(Opcode)) {
	c.onOpcode = fn
}

// ID returns the link ID.
func (c *Conn) ID() string {
	return c.link.ID()
}

// Link returns the underlying link.
func (c *Conn) Link() transport.Link {
	return c.link
}

// WriteFrame sends f.
func (c *Conn) WriteFrame(ctx context.Context, f Frame) error {
	if err := c.link.Send(ctx, f.Encode()); err != nil {
		c.trace.Error(log.LayerTransport, "send "+f.Opcode.String(), err)
		return err
	}
	c.traceFrame(log.DirectionOut, f, 0, nil)
	return nil
}

// WriteReply sends a reply and records how long the request took.
func (c *Conn) WriteReply(ctx context.Context, op Opcode, received time.Time) error {
	f := Reply(op)
	if err := c.link.Send(ctx, f.Encode()); err != nil {
		c.trace.Error(log.LayerTransport, "send "+op.String(), err)
		return err
	}
	elapsed := time.Since(received)
	c.traceFrame(log.DirectionOut, f, 0, &elapsed)
	return nil
}

// ReadFrame receives the next frame. Unknown opcodes are traced and
// returned with ErrUnknownOpcode.
func (c *Conn) ReadFrame(ctx context.Context) (Frame, error) {
	f, skipped, err := readFrame(ctx, c.link, c.onOpcode)
	if err != nil {
		if ctx.Err() == nil {
			c.trace.Error(log.LayerWire, "read frame", err)
		}
		return f, err
	}
	c.traceFrame(log.DirectionIn, f, skipped, nil)
	return f, nil
}

func (c *Conn) traceFrame(dir log.Direction, f Frame, skipped int, processing *time.Duration) {
	c.trace.Emit(log.Event{
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:     f.Size(),
			Data:     []byte{EncodeCommand(f.Opcode)},
			Redacted: f.Opcode.HasPayload(),
			Skipped:  skipped,
		},
	})
	c.trace.Emit(log.Event{
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message: &log.MessageEvent{
			Opcode:         uint8(f.Opcode),
			Name:           f.Opcode.String(),
			HasPayload:     f.Opcode.HasPayload(),
			ProcessingTime: processing,
		},
	})
}
