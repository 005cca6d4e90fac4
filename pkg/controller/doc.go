// Package controller implements the node that owns the credential store,
// the door motor and the alarm.
//
// The controller is idle until a request opcode arrives on the link. For a
// request carrying a credential it moves to AwaitingPayload until the five
// digits have been received, then acts:
//
//	SET_NEW_PASSWORD     store the credential          no reply
//	OPEN_DOOR            compare with the stored one   PASSWORD_IS_RIGHT / PASSWORD_IS_WRONG
//	CHANGE_PASSWORD      compare with the stored one   PRECEDE_CHANGE / DONT_CHANGE
//	PASSWORD_IS_CHANGED  overwrite the credential      no reply
//
// Each request is answered at most once, and the reply is sent before any
// actuation starts. A granted OPEN_DOOR runs the unlock sequence. Every
// failed comparison advances the lockout counter; when it reaches the
// threshold the alarm runs for its full duration and the counter is reset.
//
// A fault reading or writing the store ends Serve with an error wrapping
// ErrStoreFault. No reply is sent for the request that hit the fault.
package controller
