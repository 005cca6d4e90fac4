package actuation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lockline/lockline-go/pkg/tick"
)

// ErrBusy is returned when a mode is started while another is running.
var ErrBusy = errors.New("actuation: sequence already running")

// Mode selects the timed sequence.
type Mode uint8

const (
	ModeUnlock Mode = iota
	ModeAlarm
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeUnlock:
		return "UNLOCK"
	case ModeAlarm:
		return "ALARM"
	default:
		return "UNKNOWN"
	}
}

// Phase is the sequencer position.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseUnlocking
	PhaseHoldOpen
	PhaseRelocking
	PhaseAlarmSounding
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseUnlocking:
		return "UNLOCKING"
	case PhaseHoldOpen:
		return "HOLD_OPEN"
	case PhaseRelocking:
		return "RELOCKING"
	case PhaseAlarmSounding:
		return "ALARM_SOUNDING"
	default:
		return "UNKNOWN"
	}
}

// PhaseFunc observes phase changes. elapsed is the tick count at which the
// change happened.
type PhaseFunc func(from, to Phase, elapsed int)

// Sequencer runs the unlock and alarm sequences against an Actuator.
type Sequencer struct {
	act    Actuator
	timing Timing

	mu       sync.Mutex
	mode     Mode
	phase    Phase
	elapsed  int
	observer PhaseFunc
	logger   *slog.Logger
}

// NewSequencer returns an idle sequencer. Invalid timing is replaced with
// DefaultTiming.
func NewSequencer(act Actuator, timing Timing) *Sequencer {
	if act == nil {
		act = Nop{}
	}
	if timing.Validate() != nil {
		timing = DefaultTiming()
	}
	return &Sequencer{act: act, timing: timing}
}

// SetLogger sets the debug logger. Nil disables logging.
func (s *Sequencer) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// OnPhase registers fn for phase changes. fn runs on the sequencing
// goroutine and must not call back into the sequencer.
func (s *Sequencer) OnPhase(fn PhaseFunc) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Timing returns the active timing.
func (s *Sequencer) Timing() Timing {
	return s.timing
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Elapsed returns ticks since the current mode began.
func (s *Sequencer) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Busy reports whether a mode is running.
func (s *Sequencer) Busy() bool {
	return s.Phase() != PhaseIdle
}

// Begin enters mode at tick 0.
func (s *Sequencer) Begin(mode Mode) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.mode = mode
	s.elapsed = 0

	var to Phase
	switch mode {
	case ModeAlarm:
		s.act.AlarmOn()
		to = PhaseAlarmSounding
	default:
		s.act.DriveForward()
		to = PhaseUnlocking
	}
	notify := s.setPhase(to)
	s.mu.Unlock()

	notify()
	return nil
}

// Step advances one tick and reports whether the mode has ended. Step on an
// idle sequencer does nothing and returns true.
func (s *Sequencer) Step() bool {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return true
	}
	s.elapsed++
	t := s.timing
	notify := func() {}

	switch s.mode {
	case ModeAlarm:
		if s.elapsed == t.AlarmEnd {
			s.act.AlarmOff()
			notify = s.setPhase(PhaseIdle)
		}
	default:
		switch s.elapsed {
		case t.UnlockStop:
			s.act.Stop()
			notify = s.setPhase(PhaseHoldOpen)
		case t.RelockStart:
			s.act.DriveReverse()
			notify = s.setPhase(PhaseRelocking)
		case t.UnlockEnd:
			s.act.Stop()
			notify = s.setPhase(PhaseIdle)
		}
	}
	done := s.phase == PhaseIdle
	s.mu.Unlock()

	notify()
	return done
}

// Abort stops the motor and alarm and returns to idle.
func (s *Sequencer) Abort() {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}
	if s.mode == ModeAlarm {
		s.act.AlarmOff()
	} else {
		s.act.Stop()
	}
	notify := s.setPhase(PhaseIdle)
	s.mu.Unlock()

	notify()
}

// Run performs mode to completion, consuming ticks from src. src is started
// on entry and stopped on return. If ctx ends first the sequence is aborted
// and ctx.Err() returned.
func (s *Sequencer) Run(ctx context.Context, mode Mode, src tick.Source) error {
	if err := s.Begin(mode); err != nil {
		return err
	}
	src.Start()
	defer src.Stop()

	for {
		select {
		case <-src.C():
			if s.Step() {
				return nil
			}
		case <-ctx.Done():
			s.Abort()
			return ctx.Err()
		}
	}
}

// setPhase must be called with s.mu held. The returned func delivers the
// change to the observer and must be called after unlocking.
func (s *Sequencer) setPhase(to Phase) func() {
	from := s.phase
	s.phase = to
	elapsed := s.elapsed
	obs := s.observer
	if s.logger != nil {
		s.logger.Debug("actuation phase", "mode", s.mode, "from", from, "to", to, "tick", elapsed)
	}
	if obs == nil || from == to {
		return func() {}
	}
	return func() { obs(from, to, elapsed) }
}
