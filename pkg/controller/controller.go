package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lockline/lockline-go/pkg/actuation"
	"github.com/lockline/lockline-go/pkg/lockout"
	"github.com/lockline/lockline-go/pkg/log"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/tick"
	"github.com/lockline/lockline-go/pkg/transport"
	"github.com/lockline/lockline-go/pkg/wire"
)

// Controller errors.
var (
	// ErrStoreFault wraps any failure reading or writing the credential.
	ErrStoreFault = errors.New("controller: store fault")

	// ErrNoStore is returned by New without a Store.
	ErrNoStore = errors.New("controller: store is required")
)

// Config configures a Controller.
type Config struct {
	// Store holds the credential. Required.
	Store persistence.Memory

	// CredentialAddr is the credential address in Store. Zero selects
	// persistence.CredentialAddr.
	CredentialAddr int64

	// Actuator drives the motor and alarm. Nil selects actuation.Nop.
	Actuator actuation.Actuator

	// Ticks paces actuation. Nil selects a wall clock ticker with
	// tick.DefaultPeriod.
	Ticks tick.Source

	// Timing of the unlock and alarm sequences. Zero selects the defaults.
	Timing actuation.Timing

	// Threshold is the number of failures that trips the alarm.
	Threshold int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger records frames, state changes and errors.
	ProtocolLogger log.Logger
}

// Controller is the controller node. It serves one link at a time.
type Controller struct {
	slot    *persistence.CredentialSlot
	seq     *actuation.Sequencer
	ticks   tick.Source
	counter *lockout.Counter
	logger  *slog.Logger
	plog    log.Logger

	mu      sync.Mutex
	state   State
	reason  wire.Opcode
	last    Session
	serving bool
	trace   log.Emitter
}

// New returns a controller in the Idle state.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	addr := cfg.CredentialAddr
	if addr == 0 {
		addr = persistence.CredentialAddr
	}
	timing := cfg.Timing
	if timing == (actuation.Timing{}) {
		timing = actuation.DefaultTiming()
	}
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	ticks := cfg.Ticks
	if ticks == nil {
		ticks = tick.NewTicker(tick.DefaultPeriod)
	}
	act := cfg.Actuator
	if act == nil {
		act = actuation.Nop{}
	}

	c := &Controller{
		slot:    persistence.NewCredentialSlot(cfg.Store, addr),
		seq:     actuation.NewSequencer(act, timing),
		ticks:   ticks,
		counter: lockout.NewCounter(cfg.Threshold),
		logger:  cfg.Logger,
		plog:    log.OrNoop(cfg.ProtocolLogger),
	}
	c.trace = log.Emitter{Logger: c.plog, Role: log.RoleController}
	c.seq.SetLogger(cfg.Logger)
	c.seq.OnPhase(func(from, to actuation.Phase, elapsed int) {
		c.emitter().State(log.StateEntityActuation, from.String(), to.String(), "tick "+strconv.Itoa(elapsed))
	})
	return c, nil
}

// State returns the node state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failures returns the lockout counter.
func (c *Controller) Failures() int {
	return c.counter.Value()
}

// Phase returns the actuation phase.
func (c *Controller) Phase() actuation.Phase {
	return c.seq.Phase()
}

// LastSession returns the most recently completed session.
func (c *Controller) LastSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Serve handles requests from link until ctx is done, the peer closes the
// link, or a store fault occurs. A closed link returns nil.
func (c *Controller) Serve(ctx context.Context, link transport.Link) error {
	c.mu.Lock()
	if c.serving {
		c.mu.Unlock()
		return errors.New("controller: already serving")
	}
	c.serving = true
	c.trace.ConnectionID = link.ID()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.serving = false
		c.mu.Unlock()
	}()

	conn := wire.NewConn(link)
	conn.SetLogger(c.plog, log.RoleController)
	conn.OnOpcode(c.awaitPayload)

	c.debugLog("serving link", "link", link.ID())
	for {
		f, err := conn.ReadFrame(ctx)
		received := time.Now()
		if err != nil {
			c.setIdle("read failed")
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, wire.ErrUnknownOpcode):
				c.debugLog("ignoring unknown opcode", "opcode", f.Opcode)
				continue
			case errors.Is(err, transport.ErrClosed):
				c.debugLog("link closed", "link", link.ID(), "error", err)
				return nil
			default:
				return err
			}
		}
		if !f.Opcode.IsRequest() {
			c.debugLog("ignoring non-request opcode", "opcode", f.Opcode)
			continue
		}

		if err := c.handle(ctx, conn, f, received); err != nil {
			return err
		}
	}
}

func (c *Controller) handle(ctx context.Context, conn *wire.Conn, f wire.Frame, received time.Time) error {
	s := Session{
		ID:      uuid.New().String(),
		Reason:  f.Opcode,
		Started: received,
	}
	c.emitSession(s, "", "OPEN")

	var mode actuation.Mode
	runMode := false

	switch f.Opcode {
	case wire.OpSetNewPassword, wire.OpPasswordIsChanged:
		if err := f.Credential.Validate(); err != nil {
			s.Outcome = OutcomeRejected
			c.emitter().Error(log.LayerNode, "store credential", err)
			if c.logger != nil {
				c.logger.Error("refusing malformed credential", "request", f.Opcode, "error", err)
			}
			break
		}
		if err := c.slot.Write(f.Credential); err != nil {
			return c.fault(s, "write credential", err)
		}
		s.Outcome = OutcomeStored
		if f.Opcode == wire.OpPasswordIsChanged {
			s.Outcome = OutcomeChanged
		}

	case wire.OpOpenDoor, wire.OpChangePassword:
		ok, err := c.compare(f.Credential)
		if err != nil {
			return c.fault(s, "read credential", err)
		}
		if ok {
			c.counter.Succeed()
			if f.Opcode == wire.OpOpenDoor {
				s.Outcome, s.Reply = OutcomeGranted, wire.OpPasswordIsRight
				mode, runMode = actuation.ModeUnlock, true
			} else {
				s.Outcome, s.Reply = OutcomeChangeAllowed, wire.OpPrecedeChange
			}
			break
		}

		before := c.counter.Value()
		tripped := c.counter.Fail()
		c.emitter().State(log.StateEntityLockout, strconv.Itoa(before), strconv.Itoa(c.counter.Value()), f.Opcode.String())
		if f.Opcode == wire.OpOpenDoor {
			s.Outcome, s.Reply = OutcomeDenied, wire.OpPasswordIsWrong
		} else {
			s.Outcome, s.Reply = OutcomeChangeRefused, wire.OpDontChange
		}
		if tripped {
			s.Alarm = true
			mode, runMode = actuation.ModeAlarm, true
		}

	default:
		c.debugLog("ignoring reserved request", "opcode", f.Opcode)
	}

	c.setIdle(s.Outcome.String())
	c.finish(s)

	if s.Reply != 0 {
		if err := conn.WriteReply(ctx, s.Reply, received); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
	}

	if !runMode {
		return nil
	}
	if err := c.seq.Run(ctx, mode, c.ticks); err != nil {
		return err
	}
	if mode == actuation.ModeAlarm {
		before := c.counter.Value()
		c.counter.Reset()
		c.emitter().State(log.StateEntityLockout, strconv.Itoa(before), "0", "alarm finished")
	}
	return nil
}

// compare reports whether candidate matches the stored credential. An empty
// slot matches nothing.
func (c *Controller) compare(candidate wire.Credential) (bool, error) {
	stored, err := c.slot.Read()
	if errors.Is(err, persistence.ErrEmptySlot) {
		c.debugLog("no credential stored")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored.Matches(candidate), nil
}

func (c *Controller) fault(s Session, op string, err error) error {
	s.Outcome = OutcomeFault
	c.emitter().Error(log.LayerNode, op, err)
	c.setIdle(s.Outcome.String())
	c.finish(s)
	return fmt.Errorf("%w: %s: %w", ErrStoreFault, op, err)
}

func (c *Controller) finish(s Session) {
	c.mu.Lock()
	c.last = s
	c.mu.Unlock()
	c.emitSession(s, "OPEN", s.Outcome.String())
	c.debugLog("session complete",
		"session", s.ID,
		"request", s.Reason,
		"outcome", s.Outcome,
		"reply", s.Reply,
		"alarm", s.Alarm,
		"failures", c.counter.Value())
}

// awaitPayload runs between a request opcode and its payload.
func (c *Controller) awaitPayload(op wire.Opcode) {
	c.mu.Lock()
	from := c.stateName()
	c.state, c.reason = StateAwaitingPayload, op
	to := c.stateName()
	c.mu.Unlock()
	c.emitter().State(log.StateEntityNode, from, to, "")
}

func (c *Controller) setIdle(reason string) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	from := c.stateName()
	c.state, c.reason = StateIdle, 0
	c.mu.Unlock()
	c.emitter().State(log.StateEntityNode, from, StateIdle.String(), reason)
}

// stateName must be called with c.mu held.
func (c *Controller) stateName() string {
	if c.state == StateAwaitingPayload {
		return awaitingState(c.reason)
	}
	return c.state.String()
}

func (c *Controller) emitSession(s Session, from, to string) {
	c.emitter().Emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerNode,
		Category:  log.CategoryState,
		SessionID: s.ID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from,
			NewState: to,
			Reason:   s.Reason.String(),
		},
	})
}

func (c *Controller) emitter() log.Emitter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trace
}

func (c *Controller) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
