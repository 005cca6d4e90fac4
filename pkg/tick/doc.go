// Package tick delivers the periodic notifications that drive actuation.
//
// A Source produces one notification per period on C while started. Sources
// never drop notifications: a slow consumer receives every tick late rather
// than missing one, so elapsed-tick counts stay exact.
//
// Ticker follows the wall clock, Manual is advanced by tests, and Free ticks
// as fast as its consumer receives, which is what the simulator uses.
package tick
