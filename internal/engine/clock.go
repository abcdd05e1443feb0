package engine

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock. Every trigger is stamped with a
// strictly increasing sequence number, which orders triggers across jobs
// without relying on wall time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// WallClock supplies timestamps for records and results.
type WallClock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}
