package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tickbus/pkg/broadcast"
)

func receive[T any](t *testing.T, sub broadcast.Subscriber[T]) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-sub.Receive():
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero, false
}

func TestMemoryBroadcaster_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("receives published values", func(t *testing.T) {
		t.Parallel()

		b := broadcast.NewMemoryBroadcaster[int](4)
		defer b.Close()

		sub := b.Subscribe(context.Background())
		assert.Equal(t, 1, b.Len())
		assert.Equal(t, 1, b.Publish(7))

		v, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, 7, v)
	})

	t.Run("after close returns closed subscriber", func(t *testing.T) {
		t.Parallel()

		b := broadcast.NewMemoryBroadcaster[int](4)
		require.NoError(t, b.Close())

		sub := b.Subscribe(context.Background())
		_, ok := receive(t, sub)
		assert.False(t, ok)
		assert.Zero(t, b.Publish(1))
	})

	t.Run("context cancellation unsubscribes", func(t *testing.T) {
		t.Parallel()

		b := broadcast.NewMemoryBroadcaster[int](4)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)
		cancel()

		_, ok := receive(t, sub)
		assert.False(t, ok)
		assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
		assert.Zero(t, b.Publish(1))
	})

	t.Run("closed subscriber is pruned on publish", func(t *testing.T) {
		t.Parallel()

		b := broadcast.NewMemoryBroadcaster[int](4)
		defer b.Close()

		sub := b.Subscribe(context.Background())
		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		assert.Zero(t, b.Publish(1))
		assert.Zero(t, b.Len())
	})
}

func TestMemoryBroadcaster_SlowSubscriberKeepsLatest(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](2)
	defer b.Close()

	sub := b.Subscribe(context.Background())
	for i := range 5 {
		assert.Equal(t, 1, b.Publish(i))
	}

	assert.Equal(t, uint64(3), sub.Dropped())
	v, _ := receive(t, sub)
	assert.Equal(t, 3, v)
	v, _ = receive(t, sub)
	assert.Equal(t, 4, v)
	assert.Equal(t, 1, b.Len(), "slow subscribers stay subscribed")
}

func TestMemoryBroadcaster_MinimumBuffer(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](0)
	defer b.Close()

	sub := b.Subscribe(context.Background())
	b.Publish("a")
	b.Publish("b")

	v, _ := receive(t, sub)
	assert.Equal(t, "b", v)
	assert.Equal(t, uint64(1), sub.Dropped())
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](4)
	subs := []broadcast.Subscriber[int]{
		b.Subscribe(context.Background()),
		b.Subscribe(context.Background()),
	}

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Zero(t, b.Len())

	for _, sub := range subs {
		_, ok := receive(t, sub)
		assert.False(t, ok)
	}
}

func TestMemoryBroadcaster_Concurrent(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](8)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(ctx)
			for range 50 {
				b.Publish(1)
			}
			_ = sub.Close()
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		b.Publish(0)
		return b.Len() == 0
	}, time.Second, 5*time.Millisecond)
}
