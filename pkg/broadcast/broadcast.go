package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscriber receives values published by a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel values are delivered on. It is closed when
	// the subscription ends.
	Receive() <-chan T

	// Dropped reports how many values were discarded because the subscriber
	// fell behind.
	Dropped() uint64

	// Close ends the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans values out to every active subscriber without blocking the
// publisher.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber for as long as ctx is alive.
	Subscribe(ctx context.Context) Subscriber[T]

	// Publish delivers v to every subscriber and returns how many received it.
	Publish(v T) int

	// Close ends every subscription. Later subscriptions are returned closed.
	Close() error
}

type subscriber[T any] struct {
	ch      chan T
	closed  bool
	dropped atomic.Uint64
	mu      sync.Mutex
	stop    func() bool
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan T, bufferSize)}
}

func (s *subscriber[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
		if s.stop != nil {
			s.stop()
		}
	}
	return nil
}

// send never blocks. A full buffer loses its oldest value so the subscriber
// always ends up holding the most recent ones.
func (s *subscriber[T]) send(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	for {
		select {
		case s.ch <- v:
			return true
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
