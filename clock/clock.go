// Package clock abstracts the wall clock so escalation dwell times and OTP
// expiry can be tested without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Services take a Clock instead of calling
// time.Now directly.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by the time package. Times are UTC and
// truncated to microseconds, the precision the store keeps.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// FakeClock is a deterministic Clock for tests. Time moves only when Set or
// Advance is called. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock stopped at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial.UTC().Truncate(time.Microsecond)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t.UTC().Truncate(time.Microsecond)
}
