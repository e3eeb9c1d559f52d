package testing

import (
	"sync"
	"time"
)

// BaseTime is the start time of every FakeClock. It is a multiple of the restoration
// time granularity, so whole durations are not rounded.
var BaseTime = time.UnixMilli(1_700_000_000_000)

// FakeClock is a clock that only moves when it is advanced.
//
// Thread-safety: All methods are thread-safe.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock standing at BaseTime
func NewFakeClock() *FakeClock {
	return &FakeClock{now: BaseTime}
}

// Now returns the current time of the clock
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
