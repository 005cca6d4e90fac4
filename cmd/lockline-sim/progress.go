package main

import (
	"sync"

	"github.com/lockline/lockline-go/pkg/log"
)

// progress counts requests the panel has sent and sessions the controller
// has closed, from the shared protocol trace.
type progress struct {
	mu       sync.Mutex
	sent     int
	finished int
}

func (p *progress) Log(e log.Event) {
	switch {
	case e.LocalRole == log.RolePanel && e.Direction == log.DirectionOut &&
		e.Message != nil && e.Message.HasPayload:
		p.mu.Lock()
		p.sent++
		p.mu.Unlock()
	case e.LocalRole == log.RoleController && e.StateChange != nil &&
		e.StateChange.Entity == log.StateEntitySession && e.StateChange.OldState != "":
		p.mu.Lock()
		p.finished++
		p.mu.Unlock()
	}
}

// Settled reports whether every request sent so far has been handled.
func (p *progress) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished >= p.sent
}
