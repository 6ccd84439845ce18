package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock for tests that depend on expiry.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialized to a fixed UTC start time.
func NewClock() *Clock {
	return &Clock{current: time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time. Pass c.Now wherever a func() time.Time
// is accepted.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}
