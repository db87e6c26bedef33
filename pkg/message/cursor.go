package message

import "iter"

// Cursor is a reader's private bookmark into the ID space of one message type.
//
// A Cursor is owned by exactly one reader and is never shared, so it needs no
// synchronization. The zero value starts at ID 0 and therefore sees every
// message still retained by the queue; use NewCursor to start at the end.
type Cursor[T any] struct {
	next   ID
	missed uint64
}

// NewCursor returns a cursor attached at the queue's current end, so it only
// observes messages sent after this call.
func NewCursor[T any](q *Queue[T]) *Cursor[T] {
	return &Cursor[T]{next: q.sent}
}

// Position returns the ID of the next message this cursor has not read.
func (c *Cursor[T]) Position() ID {
	return c.next
}

// Missed returns how many messages this cursor lost to rotation so far.
func (c *Cursor[T]) Missed() uint64 {
	return c.missed
}

// resume returns where reading continues. A cursor ahead of the queue outlived
// an Unregister of its type; it restarts at the oldest retained message.
func (c *Cursor[T]) resume(q *Queue[T]) ID {
	if c.next > q.sent {
		return q.Oldest()
	}
	return c.next
}

// Len returns the number of unread messages without consuming them.
func (c *Cursor[T]) Len(q *Queue[T]) int {
	start := max(c.resume(q), q.Oldest())
	if start >= q.sent {
		return 0
	}
	return int(q.sent - start)
}

// IsEmpty reports whether there is nothing to read.
func (c *Cursor[T]) IsEmpty(q *Queue[T]) bool {
	return c.Len(q) == 0
}

// Clear marks every pending message as read without yielding any.
func (c *Cursor[T]) Clear(q *Queue[T]) {
	c.next = q.sent
}

// Iter consumes the unread range and returns a pull iterator over it.
// The cursor is advanced immediately, so a second call returns an empty
// iterator until more messages are sent.
func (c *Cursor[T]) Iter(q *Queue[T]) *Iterator[T] {
	prev, cur := c.take(q)
	return &Iterator[T]{prev: prev, cur: cur}
}

// Read consumes the unread range and yields payloads in ID order. The yielded
// pointers reference queue storage and stay valid until the next Rotate.
func (c *Cursor[T]) Read(q *Queue[T]) iter.Seq[*T] {
	return c.Iter(q).All()
}

// ReadWithID is like Read but also yields each message's ID.
func (c *Cursor[T]) ReadWithID(q *Queue[T]) iter.Seq2[ID, *T] {
	return c.Iter(q).WithID()
}

// ParRead consumes the unread range and returns it split into chunks that can
// be processed concurrently.
func (c *Cursor[T]) ParRead(q *Queue[T], opts ...ParOption) *ParIter[T] {
	po := q.par
	for _, opt := range opts {
		opt(&po)
	}
	prev, cur := c.take(q)
	return newParIter(prev, cur, po)
}

// take clamps the cursor past dropped messages, returns the unread slices
// and advances the cursor to the end of the queue.
func (c *Cursor[T]) take(q *Queue[T]) (prev, cur []Instance[T]) {
	c.next = c.resume(q)
	if oldest := q.Oldest(); c.next < oldest {
		c.missed += q.reportMissed(c.next, oldest)
		c.next = oldest
	}
	prev, cur = q.unread(c.next)
	c.next = max(c.next, q.sent)
	return prev, cur
}

// Iterator walks a consumed range of messages, previous generation first.
// It is single-use: once a message has been yielded it is gone. Payload
// pointers reference queue storage and stay valid until the next Rotate;
// copy them (or use Collect) to keep them longer.
type Iterator[T any] struct {
	prev []Instance[T]
	cur  []Instance[T]
}

// Len returns the number of messages left.
func (it *Iterator[T]) Len() int {
	return len(it.prev) + len(it.cur)
}

// Next returns the next payload.
func (it *Iterator[T]) Next() (*T, bool) {
	_, p, ok := it.NextWithID()
	return p, ok
}

// NextWithID returns the next payload together with its ID.
func (it *Iterator[T]) NextWithID() (ID, *T, bool) {
	var gen *[]Instance[T]
	switch {
	case len(it.prev) > 0:
		gen = &it.prev
	case len(it.cur) > 0:
		gen = &it.cur
	default:
		return 0, nil, false
	}
	m := &(*gen)[0]
	*gen = (*gen)[1:]
	return m.ID, &m.Payload, true
}

// All yields the remaining payloads. Breaking out of the loop leaves the rest
// in the iterator.
func (it *Iterator[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for {
			p, ok := it.Next()
			if !ok || !yield(p) {
				return
			}
		}
	}
}

// WithID yields the remaining messages with their IDs.
func (it *Iterator[T]) WithID() iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		for {
			id, p, ok := it.NextWithID()
			if !ok || !yield(id, p) {
				return
			}
		}
	}
}

// Collect drains the iterator into a slice of payload copies.
func (it *Iterator[T]) Collect() []T {
	out := make([]T, 0, it.Len())
	for p := range it.All() {
		out = append(out, *p)
	}
	return out
}
