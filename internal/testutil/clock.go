package testutil

import "time"

// StubClock is a manually advanced clock for deterministic tests.
type StubClock struct {
	Current time.Time
}

// NewStubClock creates a clock frozen at start.
func NewStubClock(start time.Time) *StubClock {
	return &StubClock{Current: start}
}

// Now returns the clock's current time.
func (c *StubClock) Now() time.Time { return c.Current }

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}
