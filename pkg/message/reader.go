package message

import (
	"iter"
	"reflect"
)

// AccessMode says how a param touches a message queue.
type AccessMode uint8

const (
	// AccessRead is shared access; readers of one type may run together.
	AccessRead AccessMode = iota + 1
	// AccessWrite is exclusive access to the queue.
	AccessWrite
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "none"
	}
}

// Access declares a param's claim on a message type. Schedulers use it to
// decide which systems may run concurrently.
type Access struct {
	Type reflect.Type
	Name string
	Mode AccessMode
}

// Conflicts reports whether two claims cannot be held at the same time.
func (a Access) Conflicts(b Access) bool {
	if a.Type != b.Type {
		return false
	}
	return a.Mode == AccessWrite || b.Mode == AccessWrite
}

// Probe is the read-only view of a reader used for scheduling decisions.
// Nothing reachable through a Probe advances the cursor.
type Probe interface {
	Len() int
	IsEmpty() bool
}

// Reader combines a private Cursor with shared access to a Queue.
type Reader[T any] struct {
	cursor *Cursor[T]
	queue  *Queue[T]
}

// NewReader wires a cursor to a queue. If c is nil a cursor attached at the
// queue's current end is created.
func NewReader[T any](q *Queue[T], c *Cursor[T]) *Reader[T] {
	if c == nil {
		c = NewCursor(q)
	}
	return &Reader[T]{cursor: c, queue: q}
}

// Read consumes the unread range and yields payloads in ID order. Payload
// pointers are valid until the next Rotate.
func (r *Reader[T]) Read() iter.Seq[*T] {
	return r.cursor.Read(r.queue)
}

// ReadWithID is like Read but also yields IDs.
func (r *Reader[T]) ReadWithID() iter.Seq2[ID, *T] {
	return r.cursor.ReadWithID(r.queue)
}

// Iter consumes the unread range and returns a pull iterator.
func (r *Reader[T]) Iter() *Iterator[T] {
	return r.cursor.Iter(r.queue)
}

// ParRead consumes the unread range as concurrently processable chunks.
func (r *Reader[T]) ParRead(opts ...ParOption) *ParIter[T] {
	return r.cursor.ParRead(r.queue, opts...)
}

// Len returns the number of unread messages.
func (r *Reader[T]) Len() int {
	return r.cursor.Len(r.queue)
}

// IsEmpty reports whether nothing is unread.
func (r *Reader[T]) IsEmpty() bool {
	return r.cursor.IsEmpty(r.queue)
}

// Clear marks all pending messages as read.
func (r *Reader[T]) Clear() {
	r.cursor.Clear(r.queue)
}

// Cursor exposes the underlying cursor.
func (r *Reader[T]) Cursor() *Cursor[T] {
	return r.cursor
}

// Probe returns a non-consuming view over the same cursor and queue.
func (r *Reader[T]) Probe() Probe {
	return probe[T]{cursor: r.cursor, queue: r.queue}
}

// Access declares shared access to T.
func (r *Reader[T]) Access() Access {
	return Access{Type: reflect.TypeFor[T](), Name: r.queue.name, Mode: AccessRead}
}

// Validate always succeeds; a plain reader runs whether or not anything is
// pending.
func (r *Reader[T]) Validate() error {
	return nil
}

type probe[T any] struct {
	cursor *Cursor[T]
	queue  *Queue[T]
}

func (p probe[T]) Len() int {
	return p.cursor.Len(p.queue)
}

func (p probe[T]) IsEmpty() bool {
	return p.cursor.IsEmpty(p.queue)
}

// PopulatedReader is a Reader whose system is skipped when nothing is unread.
type PopulatedReader[T any] struct {
	*Reader[T]
}

// NewPopulatedReader wraps r.
func NewPopulatedReader[T any](r *Reader[T]) *PopulatedReader[T] {
	return &PopulatedReader[T]{Reader: r}
}

// Validate returns a *SkipError when the queue has nothing unread for this
// reader. The cursor is left untouched either way.
func (p *PopulatedReader[T]) Validate() error {
	if p.Probe().IsEmpty() {
		return &SkipError{Type: p.queue.name, Reason: "message queue is empty"}
	}
	return nil
}

// Writer is the exclusive send handle for one message type.
type Writer[T any] struct {
	queue *Queue[T]
}

// NewWriter returns a writer for q.
func NewWriter[T any](q *Queue[T]) *Writer[T] {
	return &Writer[T]{queue: q}
}

// Send appends payload and returns its ID.
func (w *Writer[T]) Send(payload T) ID {
	return w.queue.Send(payload)
}

// SendBatch appends payloads with consecutive IDs.
func (w *Writer[T]) SendBatch(payloads ...T) IDRange {
	return w.queue.SendBatch(payloads...)
}

// Access declares exclusive access to T.
func (w *Writer[T]) Access() Access {
	return Access{Type: reflect.TypeFor[T](), Name: w.queue.name, Mode: AccessWrite}
}

// Validate always succeeds.
func (w *Writer[T]) Validate() error {
	return nil
}
