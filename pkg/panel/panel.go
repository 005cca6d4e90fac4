package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lockline/lockline-go/pkg/actuation"
	"github.com/lockline/lockline-go/pkg/lockout"
	"github.com/lockline/lockline-go/pkg/log"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/tick"
	"github.com/lockline/lockline-go/pkg/transport"
	"github.com/lockline/lockline-go/pkg/wire"
)

// Default feedback holds.
const (
	DefaultWrongHold = time.Second
	DefaultSetHold   = 700 * time.Millisecond
)

// Panel errors.
var (
	ErrNoStore   = errors.New("panel: store is required")
	ErrNoKeypad  = errors.New("panel: keypad is required")
	ErrNoDisplay = errors.New("panel: display is required")
)

// State is the panel node state.
type State uint8

const (
	StateFirstBoot State = iota
	StateMainMenu
	StateAwaitingReply
	StateShowingOutcome
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFirstBoot:
		return "FIRST_BOOT"
	case StateMainMenu:
		return "MAIN_MENU"
	case StateAwaitingReply:
		return "AWAITING_CONTROLLER_REPLY"
	case StateShowingOutcome:
		return "SHOWING_OUTCOME"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Panel.
type Config struct {
	// Store holds the provisioned flag. Required.
	Store persistence.Memory

	// FlagAddr is the flag address in Store. Zero selects
	// persistence.FlagAddr.
	FlagAddr int64

	Keypad  Keypad
	Display Display

	// Ticks paces the unlock and alarm displays. Nil selects a wall clock
	// ticker with tick.DefaultPeriod.
	Ticks tick.Source

	// Timing must match the controller's.
	Timing actuation.Timing

	// Threshold must match the controller's.
	Threshold int

	// WrongHold is how long "Wrong Password" stays up. Zero selects
	// DefaultWrongHold; negative disables the hold.
	WrongHold time.Duration

	// SetHold is how long "Password is set" stays up. Zero selects
	// DefaultSetHold; negative disables the hold.
	SetHold time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger records frames and state changes.
	ProtocolLogger log.Logger
}

// Panel is the interface node.
type Panel struct {
	flag      *persistence.ProvisionFlag
	keypad    Keypad
	display   Display
	ticks     tick.Source
	mirror    *actuation.Sequencer
	counter   *lockout.Counter
	wrongHold time.Duration
	setHold   time.Duration
	logger    *slog.Logger
	plog      log.Logger

	mu     sync.Mutex
	state  State
	reason wire.Opcode
	trace  log.Emitter
}

// New returns a panel. Its state is read from the store by Run.
func New(cfg Config) (*Panel, error) {
	switch {
	case cfg.Store == nil:
		return nil, ErrNoStore
	case cfg.Keypad == nil:
		return nil, ErrNoKeypad
	case cfg.Display == nil:
		return nil, ErrNoDisplay
	}
	addr := cfg.FlagAddr
	if addr == 0 {
		addr = persistence.FlagAddr
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

	p := &Panel{
		flag:      persistence.NewProvisionFlag(cfg.Store, addr),
		keypad:    cfg.Keypad,
		display:   cfg.Display,
		ticks:     ticks,
		mirror:    actuation.NewSequencer(actuation.Nop{}, timing),
		counter:   lockout.NewCounter(cfg.Threshold),
		wrongHold: holdOrDefault(cfg.WrongHold, DefaultWrongHold),
		setHold:   holdOrDefault(cfg.SetHold, DefaultSetHold),
		logger:    cfg.Logger,
		plog:      log.OrNoop(cfg.ProtocolLogger),
		state:     StateFirstBoot,
	}
	p.trace = log.Emitter{Logger: p.plog, Role: log.RolePanel}
	p.mirror.SetLogger(cfg.Logger)
	p.mirror.OnPhase(p.showPhase)
	return p, nil
}

func holdOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	}
	return d
}

// State returns the node state and, while awaiting a reply, the request
// that is outstanding.
func (p *Panel) State() (State, wire.Opcode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.reason
}

// Failures returns the local attempt counter.
func (p *Panel) Failures() int {
	return p.counter.Value()
}

// Run drives the panel over link until ctx is done or the link or keypad
// fails.
func (p *Panel) Run(ctx context.Context, link transport.Link) error {
	p.mu.Lock()
	p.trace.ConnectionID = link.ID()
	p.mu.Unlock()

	conn := wire.NewConn(link)
	conn.SetLogger(p.plog, log.RolePanel)

	provisioned, err := p.flag.IsSet()
	if err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	if !provisioned {
		p.setState(StateFirstBoot, 0, "flag not set")
		if err := p.provision(ctx, conn); err != nil {
			return err
		}
	}

	for {
		if err := p.menu(ctx, conn); err != nil {
			return err
		}
	}
}

// provision captures the first code, marks the panel provisioned and hands
// the code to the controller.
func (p *Panel) provision(ctx context.Context, conn *wire.Conn) error {
	code, err := p.captureNew(ctx)
	if err != nil {
		return err
	}
	p.display.Show(TextPasswordSet, "")
	if err := p.hold(ctx, p.setHold); err != nil {
		return err
	}
	if err := p.flag.Set(); err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	return conn.WriteFrame(ctx, wire.Request(wire.OpSetNewPassword, code))
}

// menu runs one main-menu round trip.
func (p *Panel) menu(ctx context.Context, conn *wire.Conn) error {
	p.setState(StateMainMenu, 0, "")
	p.display.Show(TextMenuChange, TextMenuOpen)

	var op wire.Opcode
	for op == 0 {
		k, err := p.keypad.ReadKey(ctx)
		if err != nil {
			return err
		}
		switch k {
		case KeyChange:
			op = wire.OpChangePassword
		case KeyOpen:
			op = wire.OpOpenDoor
		}
	}

	code, err := p.readCode(ctx, TextEnterPassword)
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(ctx, wire.Request(op, code)); err != nil {
		return err
	}
	p.setState(StateAwaitingReply, op, "")

	reply, err := p.awaitReply(ctx, conn, op)
	if err != nil {
		return err
	}
	p.setState(StateShowingOutcome, 0, reply.String())
	return p.outcome(ctx, conn, reply)
}

// awaitReply blocks until a legal reply to op arrives. Anything else on
// the link is logged and dropped.
func (p *Panel) awaitReply(ctx context.Context, conn *wire.Conn, op wire.Opcode) (wire.Opcode, error) {
	for {
		f, err := conn.ReadFrame(ctx)
		if errors.Is(err, wire.ErrUnknownOpcode) {
			p.debugLog("ignoring unknown opcode", "opcode", f.Opcode)
			continue
		}
		if err != nil {
			return 0, err
		}
		if op.Accepts(f.Opcode) {
			return f.Opcode, nil
		}
		p.debugLog("ignoring unexpected frame", "awaiting", op, "got", f.Opcode)
	}
}

func (p *Panel) outcome(ctx context.Context, conn *wire.Conn, reply wire.Opcode) error {
	switch reply {
	case wire.OpPasswordIsRight:
		p.succeed()
		return p.mirror.Run(ctx, actuation.ModeUnlock, p.ticks)

	case wire.OpPrecedeChange:
		p.succeed()
		code, err := p.captureNew(ctx)
		if err != nil {
			return err
		}
		p.display.Show(TextPasswordSet, "")
		if err := p.hold(ctx, p.setHold); err != nil {
			return err
		}
		return conn.WriteFrame(ctx, wire.Request(wire.OpPasswordIsChanged, code))

	default:
		before := p.counter.Value()
		tripped := p.counter.Fail()
		p.emitter().State(log.StateEntityLockout, strconv.Itoa(before), strconv.Itoa(p.counter.Value()), reply.String())

		p.display.Show(TextWrongPassword, "")
		if err := p.hold(ctx, p.wrongHold); err != nil {
			return err
		}
		if !tripped {
			return nil
		}
		if err := p.mirror.Run(ctx, actuation.ModeAlarm, p.ticks); err != nil {
			return err
		}
		p.counter.Reset()
		p.emitter().State(log.StateEntityLockout, strconv.Itoa(p.counter.Threshold()), "0", "alarm finished")
		return nil
	}
}

func (p *Panel) succeed() {
	if before := p.counter.Value(); before != 0 {
		p.counter.Succeed()
		p.emitter().State(log.StateEntityLockout, strconv.Itoa(before), "0", "accepted")
	}
}

// captureNew asks for a code twice until both entries agree.
func (p *Panel) captureNew(ctx context.Context) (wire.Credential, error) {
	for {
		first, err := p.readCode(ctx, TextEnterNew)
		if err != nil {
			return wire.Credential{}, err
		}
		second, err := p.readCode(ctx, TextEnterAgain)
		if err != nil {
			return wire.Credential{}, err
		}
		if first == second {
			return first, nil
		}
		p.debugLog("new code entries differ")
	}
}

// readCode collects five digits under prompt. Enter discards the digits so
// far; other keys are ignored.
func (p *Panel) readCode(ctx context.Context, prompt string) (wire.Credential, error) {
	var code wire.Credential
	p.display.Show(prompt, "")

	for n := 0; n < wire.CredentialLength; {
		k, err := p.keypad.ReadKey(ctx)
		if err != nil {
			return wire.Credential{}, err
		}
		switch {
		case k.IsDigit():
			code[n] = uint8(k)
			n++
			p.display.Show(prompt, strings.Repeat(string(MaskChar), n))
		case k == KeyEnter:
			n = 0
			p.display.Show(prompt, "")
		}
	}
	return code, nil
}

// showPhase keeps the display in step with the mirrored sequence.
func (p *Panel) showPhase(from, to actuation.Phase, elapsed int) {
	switch to {
	case actuation.PhaseUnlocking:
		p.display.Show(TextDoorIs, TextUnlocking)
	case actuation.PhaseHoldOpen:
		p.display.Show(TextDoorOpen, "")
	case actuation.PhaseRelocking:
		p.display.Show(TextDoorLocking, "")
	case actuation.PhaseAlarmSounding:
		p.display.Show(TextSystemLocked, TextCatchThief)
	}
	p.emitter().State(log.StateEntityActuation, from.String(), to.String(), "tick "+strconv.Itoa(elapsed))
}

func (p *Panel) hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Panel) setState(s State, reason wire.Opcode, why string) {
	p.mu.Lock()
	from := p.stateName()
	p.state, p.reason = s, reason
	to := p.stateName()
	p.mu.Unlock()
	if from != to {
		p.emitter().State(log.StateEntityNode, from, to, why)
		p.debugLog("panel state", "from", from, "to", to)
	}
}

// stateName must be called with p.mu held.
func (p *Panel) stateName() string {
	if p.state == StateAwaitingReply {
		return p.state.String() + "(" + p.reason.String() + ")"
	}
	return p.state.String()
}

func (p *Panel) emitter() log.Emitter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trace
}

func (p *Panel) debugLog(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
