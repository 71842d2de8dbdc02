package engine

import "sync/atomic"

// Clock numbers cycles. Every solved cycle takes the next value, so cycle
// numbers are strictly increasing and start at 1.
//
// Safe for concurrent use, although only the solver advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first cycle is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next cycle is start+1. Used to continue
// numbering after a journal of earlier cycles.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new cycle number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last cycle number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
