package ledger

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the wall clock time in unix seconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock returns a clock frozen at now.
func NewManualClock(now uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(now)
	return c
}

// Now returns the frozen time.
func (c *ManualClock) Now() uint64 {
	return c.now.Load()
}

// Set moves the clock to now.
func (c *ManualClock) Set(now uint64) {
	c.now.Store(now)
}

// Advance moves the clock forward by seconds.
func (c *ManualClock) Advance(seconds uint64) {
	c.now.Add(seconds)
}
