// Package lockout implements the failed-attempt policy shared by both nodes.
//
// Each failed comparison advances the counter by one. When it reaches the
// threshold the caller runs the alarm and then resets the counter; a
// successful comparison also resets it. The counter never exceeds the
// threshold.
package lockout

import "sync"

// DefaultThreshold is the number of consecutive failures that trip the alarm.
const DefaultThreshold = 3

// Counter counts consecutive failed attempts.
type Counter struct {
	mu        sync.RWMutex
	threshold int
	value     int
}

// NewCounter returns a counter tripping at threshold. A non-positive value
// selects DefaultThreshold.
func NewCounter(threshold int) *Counter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Counter{threshold: threshold}
}

// Fail records one failure and reports whether the threshold is reached.
// Once tripped the counter holds at the threshold until Reset.
func (c *Counter) Fail() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value < c.threshold {
		c.value++
	}
	return c.value >= c.threshold
}

// Succeed clears the counter after a successful comparison.
func (c *Counter) Succeed() {
	c.Reset()
}

// Reset clears the counter.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.value = 0
	c.mu.Unlock()
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Threshold returns the trip threshold.
func (c *Counter) Threshold() int {
	return c.threshold
}

// Tripped reports whether the counter is at the threshold.
func (c *Counter) Tripped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value >= c.threshold
}
