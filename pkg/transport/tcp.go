package transport

import (
	"context"
	"fmt"
	"net"
)

// Dial connects to a controller listening on a TCP bench link.
func Dial(ctx context.Context, addr string, opts ...Option) (*Port, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewPort(conn, opts...), nil
}

// Listener accepts the panel's connection on a TCP bench link. The link is
// point to point: a second panel is refused while one is attached.
type Listener struct {
	ln net.Listener
}

// Listen opens a TCP listener on addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound TCP port number.
func (l *Listener) Port() int {
	if a, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Accept waits for the panel to connect, or for ctx to be done.
func (l *Listener) Accept(ctx context.Context, opts ...Option) (*Port, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("transport: accept: %w", r.err)
		}
		return NewPort(r.conn, opts...), nil
	case <-ctx.Done():
		_ = l.ln.Close()
		if r := <-ch; r.conn != nil {
			_ = r.conn.Close()
		}
		return nil, ctx.Err()
	}
}

// Close stops listening. Ports already accepted stay open.
func (l *Listener) Close() error {
	return l.ln.Close()
}
