package message

import (
	"log/slog"
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/dmitrymomot/tickbus/pkg/logger"
)

// Queue is the double-buffered storage for one message type.
//
// Messages sent during a tick land in the current generation. Rotate, called
// once per tick, ages current into previous and discards whatever previous
// held, so a message stays readable for two rotations at most.
//
// Queue does no locking. The scheduler must ensure that Send, Rotate, ClearAll
// and Drain never overlap with each other or with any reader of the same
// queue. Any number of readers may run concurrently.
type Queue[T any] struct {
	current  []Instance[T]
	previous []Instance[T]
	sent     ID

	// IDs below clearedBelow were dropped on purpose and are not reported as
	// loss when a lagging cursor skips over them.
	clearedBelow ID
	missed       atomic.Uint64

	name   string
	logger *slog.Logger
	par    parOptions
}

// NewQueue creates a standalone queue. Most callers go through Register.
func NewQueue[T any](opts ...Option) *Queue[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newQueue[T](typeName[T](), o)
}

func newQueue[T any](name string, o options) *Queue[T] {
	return &Queue[T]{
		name:   name,
		logger: o.logger.With(logger.MessageType(name)),
		par:    o.par,
	}
}

// Send appends payload to the current generation and returns its ID.
func (q *Queue[T]) Send(payload T) ID {
	id := q.sent
	q.current = append(q.current, Instance[T]{ID: id, Payload: payload})
	q.sent++
	return id
}

// SendBatch appends payloads in order with consecutive IDs.
func (q *Queue[T]) SendBatch(payloads ...T) IDRange {
	r := IDRange{Start: q.sent}
	q.current = slices.Grow(q.current, len(payloads))
	for _, p := range payloads {
		q.current = append(q.current, Instance[T]{ID: q.sent, Payload: p})
		q.sent++
	}
	r.End = q.sent
	return r
}

// Rotate discards the previous generation and promotes current to previous.
// The discarded backing array is reused for the new current generation.
func (q *Queue[T]) Rotate() {
	stale := q.previous
	clear(stale)
	q.previous = q.current
	q.current = stale[:0]
}

// ClearAll drops both generations. Cursors lagging behind do not report the
// cleared messages as missed.
func (q *Queue[T]) ClearAll() {
	clear(q.previous)
	clear(q.current)
	q.previous = q.previous[:0]
	q.current = q.current[:0]
	q.clearedBelow = q.sent
}

// Drain removes every retained message and returns the payloads in ID order.
func (q *Queue[T]) Drain() []T {
	out := make([]T, 0, q.Len())
	for _, m := range q.previous {
		out = append(out, m.Payload)
	}
	for _, m := range q.current {
		out = append(out, m.Payload)
	}
	q.ClearAll()
	return out
}

// Len returns the number of retained messages across both generations.
func (q *Queue[T]) Len() int {
	return len(q.previous) + len(q.current)
}

// IsEmpty reports whether no messages are retained.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// SentCount returns the total number of messages ever sent, which is also the
// ID the next message will receive.
func (q *Queue[T]) SentCount() uint64 {
	return uint64(q.sent)
}

// Oldest returns the lowest retained ID, or the next ID when nothing is
// retained. Retained IDs always form the contiguous range [Oldest, SentCount).
func (q *Queue[T]) Oldest() ID {
	switch {
	case len(q.previous) > 0:
		return q.previous[0].ID
	case len(q.current) > 0:
		return q.current[0].ID
	default:
		return q.sent
	}
}

// Name returns the message type name used in diagnostics.
func (q *Queue[T]) Name() string {
	return q.name
}

// Stats describes a queue at a point in time.
type Stats struct {
	Type     string `json:"type"`
	Sent     uint64 `json:"sent"`
	Current  int    `json:"current"`
	Previous int    `json:"previous"`
	Oldest   uint64 `json:"oldest"`
	Missed   uint64 `json:"missed"`
}

// Stats returns a snapshot of the queue counters.
// It must not run concurrently with a writer or Rotate.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Type:     q.name,
		Sent:     uint64(q.sent),
		Current:  len(q.current),
		Previous: len(q.previous),
		Oldest:   uint64(q.Oldest()),
		Missed:   q.missed.Load(),
	}
}

// unread returns the retained messages with ID >= from, split by generation.
func (q *Queue[T]) unread(from ID) (prev, cur []Instance[T]) {
	return tail(q.previous, from), tail(q.current, from)
}

// tail returns the suffix of a generation whose IDs are >= from.
// Generations hold contiguous IDs, so the offset is computed directly.
func tail[T any](gen []Instance[T], from ID) []Instance[T] {
	if len(gen) == 0 {
		return nil
	}
	first := gen[0].ID
	if from <= first {
		return gen
	}
	skip := from - first
	if skip >= ID(len(gen)) {
		return nil
	}
	return gen[skip:]
}

// reportMissed records messages a cursor lost to rotation.
func (q *Queue[T]) reportMissed(cursor, oldest ID) uint64 {
	from := max(cursor, q.clearedBelow)
	if from >= oldest {
		return 0
	}
	n := uint64(oldest - from)
	q.missed.Add(n)
	q.logger.Warn("reader missed messages",
		logger.Missed(n),
		slog.Uint64("cursor", uint64(cursor)),
		slog.Uint64("oldest", uint64(oldest)),
		slog.String("hint", "read more often or rotate less frequently"),
	)
	return n
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
