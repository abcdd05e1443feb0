// Package history keeps a bounded, oldest-evicted-first log of check results.
//
// A Buffer is a value. Append never modifies its receiver; it returns a new
// Buffer that shares nothing mutable with the old one. Readers holding an
// older Buffer therefore never observe a half-finished insertion, which is
// what lets the engine publish job records by whole-value replacement
// without any per-buffer locking.
package history

import (
	"errors"
	"fmt"

	"github.com/roach88/nodecheck/internal/check"
)

// Capacity is the number of results retained per job.
const Capacity = 25

// ErrOutOfRange is returned by At for an index beyond the current size.
var ErrOutOfRange = errors.New("history: index out of range")

// Buffer is a fixed-capacity circular log of results.
// The zero value is an empty buffer with capacity 0 that drops every append;
// use New.
type Buffer struct {
	items []check.Result
	start int // index of the oldest entry
	size  int
}

// New returns an empty buffer holding at most capacity results.
func New(capacity int) Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return Buffer{items: make([]check.Result, capacity)}
}

// Cap returns the fixed capacity.
func (b Buffer) Cap() int {
	return len(b.items)
}

// Len returns the number of stored results, never more than Cap.
func (b Buffer) Len() int {
	return b.size
}

// Append returns a new buffer with r as the newest entry, evicting the oldest
// entry when full. The receiver is left untouched.
func (b Buffer) Append(r check.Result) Buffer {
	capacity := len(b.items)
	if capacity == 0 {
		return b
	}

	next := Buffer{
		items: make([]check.Result, capacity),
		start: b.start,
		size:  b.size,
	}
	copy(next.items, b.items)

	if next.size < capacity {
		next.items[(next.start+next.size)%capacity] = r
		next.size++
		return next
	}

	// Full: overwrite the oldest slot and advance the start.
	next.items[next.start] = r
	next.start = (next.start + 1) % capacity
	return next
}

// Latest returns the most recently appended result.
func (b Buffer) Latest() (check.Result, bool) {
	if b.size == 0 {
		return check.Result{}, false
	}
	return b.items[(b.start+b.size-1)%len(b.items)], true
}

// At returns the i-th result counting from the oldest (0) to the newest
// (Len()-1).
func (b Buffer) At(i int) (check.Result, error) {
	if i < 0 || i >= b.size {
		return check.Result{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, b.size)
	}
	return b.items[(b.start+i)%len(b.items)], nil
}

// Slice returns the stored results oldest to newest. The returned slice is a
// fresh copy owned by the caller.
func (b Buffer) Slice() []check.Result {
	out := make([]check.Result, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}
