package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FaultByte replaces a byte received with a framing or parity error.
const FaultByte byte = 0xFF

// DefaultQueueSize is the receive queue depth. A full request frame is six
// bytes, so the default leaves room for several frames of backlog.
const DefaultQueueSize = 64

// Transport errors.
var (
	// ErrClosed is returned once the link has been closed locally or the
	// peer has gone away and every queued byte has been consumed.
	ErrClosed = errors.New("transport: link closed")

	// ErrEmptyWrite is returned by Send for an empty buffer.
	ErrEmptyWrite = errors.New("transport: empty write")
)

// Link is a full-duplex byte channel between the two nodes.
type Link interface {
	// ID uniquely identifies this link for tracing.
	ID() string

	// Send writes p in order. It returns when every byte is handed to the
	// underlying device.
	Send(ctx context.Context, p []byte) error

	// Receive blocks until a byte is available, the link closes or ctx is
	// done. Line faults are returned as FaultByte with a nil error.
	Receive(ctx context.Context) (byte, error)

	Close() error
}

// LineError is returned by adapter readers for bytes that failed framing or
// parity checks. Each LineError becomes one FaultByte on the queue.
type LineError struct {
	Reason string
}

func (e *LineError) Error() string {
	return "transport: line fault: " + e.Reason
}

// Option configures a Port.
type Option func(*Port)

// WithQueueSize sets the receive queue depth.
func WithQueueSize(n int) Option {
	return func(p *Port) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithID overrides the generated link ID.
func WithID(id string) Option {
	return func(p *Port) {
		if id != "" {
			p.id = id
		}
	}
}

// Port is a Link over an io.ReadWriteCloser.
type Port struct {
	id        string
	rwc       io.ReadWriteCloser
	queueSize int

	rx   chan byte
	done chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error

	errMu sync.Mutex
	rxErr error
}

// NewPort starts the receive goroutine on rwc and returns the link.
func NewPort(rwc io.ReadWriteCloser, opts ...Option) *Port {
	p := &Port{
		id:        uuid.New().String(),
		rwc:       rwc,
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.rx = make(chan byte, p.queueSize)
	go p.receiveLoop()
	return p
}

// ID returns the link ID.
func (p *Port) ID() string {
	return p.id
}

// Send writes data to the device.
func (p *Port) Send(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyWrite
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		if c, ok := p.rwc.(interface{ SetWriteDeadline(time.Time) error }); ok {
			_ = c.SetWriteDeadline(dl)
			defer func() { _ = c.SetWriteDeadline(time.Time{}) }()
		}
	}

	if _, err := p.rwc.Write(data); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Receive returns the next byte from the queue.
func (p *Port) Receive(ctx context.Context) (byte, error) {
	select {
	case b, ok := <-p.rx:
		if !ok {
			return 0, p.receiveErr()
		}
		return b, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close closes the device and stops the receive goroutine. Bytes already
// queued can still be drained with Receive.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.closeErr = p.rwc.Close()
	})
	return p.closeErr
}

func (p *Port) receiveErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()

	switch {
	case p.rxErr == nil,
		errors.Is(p.rxErr, ErrClosed),
		errors.Is(p.rxErr, io.EOF),
		errors.Is(p.rxErr, net.ErrClosed),
		errors.Is(p.rxErr, io.ErrClosedPipe):
		return ErrClosed
	default:
		return fmt.Errorf("%w: %v", ErrClosed, p.rxErr)
	}
}

// receiveLoop is the only writer of p.rx.
func (p *Port) receiveLoop() {
	defer close(p.rx)

	buf := make([]byte, 32)
	for {
		n, err := p.rwc.Read(buf)
		for _, b := range buf[:n] {
			if !p.enqueue(b) {
				return
			}
		}
		if err == nil {
			continue
		}

		var lineErr *LineError
		var netErr net.Error
		switch {
		case errors.As(err, &lineErr):
			if !p.enqueue(FaultByte) {
				return
			}
		case errors.As(err, &netErr) && netErr.Timeout():
			// read deadline on a bench link; keep listening
		default:
			select {
			case <-p.done:
				err = ErrClosed
			default:
			}
			p.errMu.Lock()
			p.rxErr = err
			p.errMu.Unlock()
			return
		}
	}
}

func (p *Port) enqueue(b byte) bool {
	select {
	case p.rx <- b:
		return true
	case <-p.done:
		return false
	}
}

var _ Link = (*Port)(nil)
