package invoke

import "sync/atomic"

// SeqClock stamps activations with a strictly increasing sequence number.
// Implemented by Clock and testutil.DeterministicClock.
type SeqClock interface {
	Next() int64
}

// Clock is a monotonic logical clock. Seq orders activations that share a
// start millisecond.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, e.g. from the
// highest seq already persisted.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
