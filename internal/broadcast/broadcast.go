// Package broadcast implements a latest-value fan-out channel.
//
// A Channel has one producer and any number of subscribers. Each subscriber
// owns a one-slot outbox: publishing overwrites an undelivered older value
// instead of blocking, so a slow consumer only ever misses intermediate
// values, never the newest one. A subscriber that joins late starts with the
// most recent value already waiting in its outbox.
//
// This is an "eventually delivers the latest state" stream, not an event
// log. Full history lives elsewhere.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Subscription.Next once the channel or the
// subscription has been closed and the outbox is drained.
var ErrClosed = errors.New("broadcast: closed")

// Channel is a single-producer, multi-consumer latest-value stream.
// The zero value is ready to use.
type Channel[T any] struct {
	mu        sync.Mutex
	latest    T
	hasLatest bool
	subs      map[*Subscription[T]]struct{}
	closed    bool
}

// Subscription is one consumer's view of a Channel.
type Subscription[T any] struct {
	ch     chan T
	parent *Channel[T]
	done   bool // guarded by parent.mu
}

// Publish records v as the latest value and offers it to every subscriber.
// It never blocks. Publishing on a closed channel is a no-op.
func (c *Channel[T]) Publish(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.latest = v
	c.hasLatest = true

	for sub := range c.subs {
		offer(sub.ch, v)
	}
}

// offer puts v into a one-slot outbox, dropping whatever undelivered value
// is already there. Only the producer sends, and it does so under the
// channel lock, so the second send cannot fail after a successful drain.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Subscribe registers a new consumer. If a value has been published, it is
// already waiting in the returned subscription's outbox.
//
// Subscribing to a closed channel returns a subscription that yields the
// last value (if any) and then reports ErrClosed.
func (c *Channel[T]) Subscribe() *Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription[T]{
		ch:     make(chan T, 1),
		parent: c,
	}
	if c.hasLatest {
		sub.ch <- c.latest
	}
	if c.closed {
		sub.done = true
		close(sub.ch)
		return sub
	}

	if c.subs == nil {
		c.subs = make(map[*Subscription[T]]struct{})
	}
	c.subs[sub] = struct{}{}
	return sub
}

// Latest returns the most recently published value.
func (c *Channel[T]) Latest() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.hasLatest
}

// Subscribers returns the number of live subscriptions.
func (c *Channel[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close ends the stream. Every subscription's C is closed once its pending
// value, if any, has been received. Close is idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for sub := range c.subs {
		sub.done = true
		close(sub.ch)
	}
	c.subs = nil
}

// C returns the receive side of the subscription's outbox. It is closed when
// the subscription or its channel is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Next blocks until a value is available, the stream ends, or ctx is done.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-s.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close detaches the subscription from its channel. It is idempotent and
// safe to call after the channel itself was closed.
func (s *Subscription[T]) Close() {
	c := s.parent
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.done {
		return
	}
	s.done = true
	delete(c.subs, s)
	close(s.ch)
}
