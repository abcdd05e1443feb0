package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := sub.Next(ctx)
	require.NoError(t, err)
	return v
}

func assertEmpty[T any](t *testing.T, sub *Subscription[T]) {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected value %v", v)
		}
	default:
	}
}

func TestChannel_SubscribeBeforePublish(t *testing.T) {
	var c Channel[int]
	sub := c.Subscribe()
	defer sub.Close()

	assertEmpty(t, sub)

	c.Publish(1)
	assert.Equal(t, 1, receive(t, sub))
	assertEmpty(t, sub)
}

func TestChannel_LateSubscriberGetsLatest(t *testing.T) {
	var c Channel[string]
	c.Publish("first")
	c.Publish("second")

	sub := c.Subscribe()
	defer sub.Close()

	assert.Equal(t, "second", receive(t, sub))
	assertEmpty(t, sub)

	c.Publish("third")
	assert.Equal(t, "third", receive(t, sub))
}

func TestChannel_SlowConsumerKeepsNewest(t *testing.T) {
	var c Channel[int]
	sub := c.Subscribe()
	defer sub.Close()

	for i := 1; i <= 100; i++ {
		c.Publish(i)
	}

	assert.Equal(t, 100, receive(t, sub))
	assertEmpty(t, sub)
}

func TestChannel_IndependentSubscribers(t *testing.T) {
	var c Channel[int]
	a := c.Subscribe()
	defer a.Close()
	b := c.Subscribe()
	defer b.Close()

	c.Publish(1)
	assert.Equal(t, 1, receive(t, a))

	c.Publish(2)
	assert.Equal(t, 2, receive(t, a))
	// b never drained, so it only has the newest value.
	assert.Equal(t, 2, receive(t, b))
	assert.Equal(t, 2, c.Subscribers())
}

func TestChannel_CloseEndsSubscriptions(t *testing.T) {
	var c Channel[int]
	sub := c.Subscribe()
	c.Publish(7)
	c.Close()
	c.Close()

	assert.Equal(t, 7, receive(t, sub))
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	sub.Close()
	assert.Equal(t, 0, c.Subscribers())

	c.Publish(8)
	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, 7, latest)
}

func TestChannel_SubscribeAfterClose(t *testing.T) {
	var c Channel[int]
	c.Publish(3)
	c.Close()

	sub := c.Subscribe()
	assert.Equal(t, 3, receive(t, sub))
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscription_CloseDetaches(t *testing.T) {
	var c Channel[int]
	sub := c.Subscribe()
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, c.Subscribers())
	c.Publish(1)

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	var c Channel[int]
	sub := c.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannel_ConcurrentPublishAndConsume(t *testing.T) {
	var c Channel[int]
	sub := c.Subscribe()

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			c.Publish(i)
		}
		c.Close()
	}()

	last := 0
	for v := range sub.C() {
		require.Greater(t, v, last, "values must never go backwards")
		last = v
	}
	wg.Wait()
	assert.Equal(t, n, last)
}
