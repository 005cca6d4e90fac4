package actuation

import (
	"log/slog"
	"sync"
)

// Actuator drives the motor and the alarm output.
type Actuator interface {
	DriveForward()
	DriveReverse()
	Stop()
	AlarmOn()
	AlarmOff()
}

// Command is one actuator call, as recorded by Recorder.
type Command uint8

const (
	CmdDriveForward Command = iota
	CmdDriveReverse
	CmdStop
	CmdAlarmOn
	CmdAlarmOff
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdDriveForward:
		return "DRIVE_FORWARD"
	case CmdDriveReverse:
		return "DRIVE_REVERSE"
	case CmdStop:
		return "STOP"
	case CmdAlarmOn:
		return "ALARM_ON"
	case CmdAlarmOff:
		return "ALARM_OFF"
	default:
		return "UNKNOWN"
	}
}

// Nop ignores every command.
type Nop struct{}

func (Nop) DriveForward() {}
func (Nop) DriveReverse() {}
func (Nop) Stop()         {}
func (Nop) AlarmOn()      {}
func (Nop) AlarmOff()     {}

// LogActuator reports commands to a structured logger. It stands in for the
// motor driver and buzzer on hosts without them.
type LogActuator struct {
	Logger *slog.Logger
}

// NewLogActuator returns an actuator logging to logger, or slog.Default()
// when logger is nil.
func NewLogActuator(logger *slog.Logger) *LogActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogActuator{Logger: logger}
}

func (a *LogActuator) DriveForward() { a.Logger.Info("motor", "direction", "forward") }
func (a *LogActuator) DriveReverse() { a.Logger.Info("motor", "direction", "reverse") }
func (a *LogActuator) Stop()         { a.Logger.Info("motor", "direction", "stop") }
func (a *LogActuator) AlarmOn()      { a.Logger.Warn("alarm", "state", "on") }
func (a *LogActuator) AlarmOff()     { a.Logger.Info("alarm", "state", "off") }

// Recorder keeps every command it receives.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
}

func (r *Recorder) DriveForward() { r.record(CmdDriveForward) }
func (r *Recorder) DriveReverse() { r.record(CmdDriveReverse) }
func (r *Recorder) Stop()         { r.record(CmdStop) }
func (r *Recorder) AlarmOn()      { r.record(CmdAlarmOn) }
func (r *Recorder) AlarmOff()     { r.record(CmdAlarmOff) }

func (r *Recorder) record(c Command) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	r.mu.Unlock()
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Reset forgets recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.mu.Unlock()
}

var (
	_ Actuator = Nop{}
	_ Actuator = (*LogActuator)(nil)
	_ Actuator = (*Recorder)(nil)
)
