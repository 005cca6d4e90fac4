package transport

import "net"

// Pipe returns two connected in-process links. Bytes sent on one are
// received on the other. Used by tests and the single-process simulator.
func Pipe(opts ...Option) (*Port, *Port) {
	a, b := net.Pipe()
	return NewPort(a, opts...), NewPort(b, opts...)
}
