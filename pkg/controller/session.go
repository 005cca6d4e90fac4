package controller

import (
	"fmt"
	"time"

	"github.com/lockline/lockline-go/pkg/wire"
)

// State is the controller node state.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingPayload
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingPayload:
		return "AWAITING_PAYLOAD"
	default:
		return "UNKNOWN"
	}
}

// Outcome is how a session ended.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeStored
	OutcomeGranted
	OutcomeDenied
	OutcomeChangeAllowed
	OutcomeChangeRefused
	OutcomeChanged
	OutcomeRejected
	OutcomeFault
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "PENDING"
	case OutcomeStored:
		return "STORED"
	case OutcomeGranted:
		return "GRANTED"
	case OutcomeDenied:
		return "DENIED"
	case OutcomeChangeAllowed:
		return "CHANGE_ALLOWED"
	case OutcomeChangeRefused:
		return "CHANGE_REFUSED"
	case OutcomeChanged:
		return "CHANGED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// Session is one request handled by the controller.
type Session struct {
	ID      string
	Reason  wire.Opcode
	Started time.Time
	Outcome Outcome

	// Reply is the opcode sent back, zero when the request has no reply.
	Reply wire.Opcode

	// Alarm is set when the session tripped the lockout.
	Alarm bool
}

func (s Session) String() string {
	return fmt.Sprintf("%s %s -> %s", s.ID, s.Reason, s.Outcome)
}

func awaitingState(reason wire.Opcode) string {
	return StateAwaitingPayload.String() + "(" + reason.String() + ")"
}
