// Package testutil holds deterministic stand-ins for the invoker's clocks
// and ID source, so scenarios and golden traces are byte-stable.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time a DeterministicClock starts at.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is both a sequence clock and a wall clock. Each Now
// call advances the wall time by step; Next counts from 1.
//
// Thread-safety: all methods are safe for concurrent use.
type DeterministicClock struct {
	mu    sync.Mutex
	seq   int64
	ticks int64
	step  time.Duration
}

// NewDeterministicClock creates a clock whose wall time advances by one
// millisecond per Now call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{step: time.Millisecond}
}

// NewDeterministicClockStep creates a clock advancing by step per Now call.
func NewDeterministicClockStep(step time.Duration) *DeterministicClock {
	return &DeterministicClock{step: step}
}

// Next increments and returns the sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Now returns Epoch plus one step per previous call.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Reset rewinds both the sequence and the wall time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.ticks = 0
}
