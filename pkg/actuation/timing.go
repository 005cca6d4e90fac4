package actuation

import (
	"errors"
	"fmt"
)

// Default tick offsets.
const (
	DefaultUnlockStop  = 15
	DefaultRelockStart = 18
	DefaultUnlockEnd   = 33
	DefaultAlarmEnd    = 60
)

// ErrInvalidTiming is returned by Timing.Validate.
var ErrInvalidTiming = errors.New("actuation: invalid timing")

// Timing holds the tick offsets of both modes.
type Timing struct {
	// UnlockStop is when the motor stops with the door open.
	UnlockStop int `yaml:"unlock_stop" toml:"unlock_stop" env:"UNLOCK_STOP"`

	// RelockStart is when the motor starts in reverse.
	RelockStart int `yaml:"relock_start" toml:"relock_start" env:"RELOCK_START"`

	// UnlockEnd is when the motor stops and the unlock sequence ends.
	UnlockEnd int `yaml:"unlock_end" toml:"unlock_end" env:"UNLOCK_END"`

	// AlarmEnd is when the alarm stops.
	AlarmEnd int `yaml:"alarm_end" toml:"alarm_end" env:"ALARM_END"`
}

// DefaultTiming returns the appliance timing.
func DefaultTiming() Timing {
	return Timing{
		UnlockStop:  DefaultUnlockStop,
		RelockStart: DefaultRelockStart,
		UnlockEnd:   DefaultUnlockEnd,
		AlarmEnd:    DefaultAlarmEnd,
	}
}

// Validate checks that the unlock offsets are strictly increasing and both
// modes last at least one tick.
func (t Timing) Validate() error {
	if t.UnlockStop <= 0 || t.RelockStart <= t.UnlockStop || t.UnlockEnd <= t.RelockStart {
		return fmt.Errorf("%w: unlock offsets %d/%d/%d", ErrInvalidTiming, t.UnlockStop, t.RelockStart, t.UnlockEnd)
	}
	if t.AlarmEnd <= 0 {
		return fmt.Errorf("%w: alarm end %d", ErrInvalidTiming, t.AlarmEnd)
	}
	return nil
}

// Length returns how many ticks mode lasts.
func (t Timing) Length(mode Mode) int {
	if mode == ModeAlarm {
		return t.AlarmEnd
	}
	return t.UnlockEnd
}
