package log

import "time"

// Event is one protocol trace record. Exactly one of the payload pointers
// (Frame, Message, StateChange, Error) is set.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the link (UUID assigned when the link opened).
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// LocalRole is the node that recorded the event.
	LocalRole Role `cbor:"6,keyasint"`

	// SessionID is set on controller events that belong to a session.
	SessionID string `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction of a frame relative to the recording node.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
	// DirectionLocal marks events that did not cross the link.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer where the event was captured.
type Layer uint8

const (
	LayerTransport Layer = 0
	LayerWire      Layer = 1
	LayerNode      Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerNode:
		return "NODE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryState   Category = 1
	CategoryError   Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role of the recording node.
type Role uint8

const (
	RolePanel      Role = 0
	RoleController Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RolePanel:
		return "PANEL"
	case RoleController:
		return "CONTROLLER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent describes a frame as it was written to or read from the link.
type FrameEvent struct {
	// Size is the frame size in bytes, payload included.
	Size int `cbor:"1,keyasint"`

	// Data holds the leading opcode byte only.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Redacted is true when a credential payload followed the opcode.
	Redacted bool `cbor:"3,keyasint,omitempty"`

	// Skipped counts link-fault sentinels dropped while reading the frame.
	Skipped int `cbor:"4,keyasint,omitempty"`
}

// MessageEvent describes a decoded frame.
type MessageEvent struct {
	Opcode uint8  `cbor:"1,keyasint"`
	Name   string `cbor:"2,keyasint"`

	// HasPayload reports whether a credential accompanied the opcode.
	HasPayload bool `cbor:"3,keyasint,omitempty"`

	// ProcessingTime is the time from request receipt to reply (replies only).
	ProcessingTime *time.Duration `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent records a node-level transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity names what changed state.
type StateEntity uint8

const (
	StateEntityNode      StateEntity = 0
	StateEntitySession   StateEntity = 1
	StateEntityActuation StateEntity = 2
	StateEntityLockout   StateEntity = 3
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityNode:
		return "NODE"
	case StateEntitySession:
		return "SESSION"
	case StateEntityActuation:
		return "ACTUATION"
	case StateEntityLockout:
		return "LOCKOUT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData records an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context is the operation that failed, e.g. "read credential slot".
	Context string `cbor:"3,keyasint,omitempty"`
}

// Emitter stamps events with a node's fixed identity before forwarding them.
// The zero value discards events.
type Emitter struct {
	Logger       Logger
	Role         Role
	ConnectionID string
}

// Emit fills Timestamp, LocalRole and ConnectionID (when empty) and logs ev.
func (e Emitter) Emit(ev Event) {
	if e.Logger == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.LocalRole = e.Role
	if ev.ConnectionID == "" {
		ev.ConnectionID = e.ConnectionID
	}
	e.Logger.Log(ev)
}

// State emits a NODE layer state change.
func (e Emitter) State(entity StateEntity, from, to, reason string) {
	e.Emit(Event{
		Direction: DirectionLocal,
		Layer:     LayerNode,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

// Error emits an error event.
func (e Emitter) Error(layer Layer, context string, err error) {
	if err == nil {
		return
	}
	e.Emit(Event{
		Direction: DirectionLocal,
		Layer:     layer,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
