package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/enbility/zeroconf/v3"
)

// mDNS service parameters for TCP bench links.
const (
	ServiceType = "_lockline._tcp"
	Domain      = "local."
)

// ErrNoController is returned by Browse when ctx ends before a controller
// answers.
var ErrNoController = errors.New("transport: no controller found")

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise publishes the controller's bench link on all interfaces.
func Advertise(instance string, port int, txt []string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: advertise %s: %w", instance, err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Browse returns host:port of the first controller that answers. The caller
// bounds the search with ctx.
func Browse(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoController
			}
			if addr := entryAddr(entry); addr != "" {
				return addr, nil
			}
		case <-removed:
		case <-ctx.Done():
			return "", ErrNoController
		}
	}
}

func entryAddr(entry *zeroconf.ServiceEntry) string {
	if entry == nil || entry.Port == 0 {
		return ""
	}
	port := strconv.Itoa(entry.Port)
	if len(entry.AddrIPv4) > 0 {
		return net.JoinHostPort(entry.AddrIPv4[0].String(), port)
	}
	if len(entry.AddrIPv6) > 0 {
		return net.JoinHostPort(entry.AddrIPv6[0].String(), port)
	}
	if entry.HostName != "" {
		return net.JoinHostPort(entry.HostName, port)
	}
	return ""
}
