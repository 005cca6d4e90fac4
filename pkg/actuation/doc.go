// Package actuation sequences the door motor and the alarm.
//
// A Sequencer runs one of two timed modes, counted in ticks from entry:
//
//	Unlock: forward at 0, stop at 15 (held open), reverse at 18, stop at 33
//	Alarm:  alarm on at 0, alarm off at 60
//
// The elapsed counter is cleared on entry and advanced by exactly one per
// tick. Only one mode runs at a time. The panel drives the same sequencer
// with a Nop actuator to keep its display in step with the controller.
package actuation
