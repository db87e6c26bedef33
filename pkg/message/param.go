package message

import "github.com/google/uuid"

// Param is anything a system declares up front: it names the queue access it
// needs and can veto a run through Validate.
type Param interface {
	Access() Access
	Validate() error
}

// Builder is the construction-time contract a scheduler offers to param
// constructors.
type Builder interface {
	// Owner identifies the system being built. Cursors are stored under it.
	Owner() uuid.UUID
	Registry() *Registry
	Cursors() *CursorStore
	// Slot allocates the next per-system slot so two readers of the same
	// type inside one system keep separate cursors.
	Slot() int
	// Declare records a param for conflict detection and validation.
	// Declaring the same param twice must not register it twice.
	Declare(p Param)
}

// ReaderFor builds a Reader for T, reusing the system's cursor across ticks.
// It fails with ErrNotRegistered if T was never registered.
func ReaderFor[T any](b Builder) (*Reader[T], error) {
	r, err := newSystemReader[T](b)
	if err != nil {
		return nil, err
	}
	b.Declare(r)
	return r, nil
}

// PopulatedReaderFor builds a reader whose system is skipped while nothing is
// unread.
func PopulatedReaderFor[T any](b Builder) (*PopulatedReader[T], error) {
	r, err := newSystemReader[T](b)
	if err != nil {
		return nil, err
	}
	p := NewPopulatedReader(r)
	b.Declare(p)
	return p, nil
}

// WriterFor builds a Writer for T.
func WriterFor[T any](b Builder) (*Writer[T], error) {
	if b == nil {
		return nil, ErrNilBuilder
	}
	q, err := Lookup[T](b.Registry())
	if err != nil {
		return nil, err
	}
	w := NewWriter(q)
	b.Declare(w)
	return w, nil
}

// OnMessage builds a run condition that lets its system run only when a T was
// sent since the condition last passed. It tracks its own cursor and clears it
// on success, so it does not affect any reader the system declares. The
// condition is declared on b here.
func OnMessage[T any](b Builder) (*MessageCondition[T], error) {
	r, err := newSystemReader[T](b)
	if err != nil {
		return nil, err
	}
	c := &MessageCondition[T]{reader: r}
	b.Declare(c)
	return c, nil
}

func newSystemReader[T any](b Builder) (*Reader[T], error) {
	if b == nil {
		return nil, ErrNilBuilder
	}
	q, err := Lookup[T](b.Registry())
	if err != nil {
		return nil, err
	}
	c := CursorFor(b.Cursors(), b.Owner(), b.Slot(), q)
	return NewReader(q, c), nil
}

// MessageCondition is the param returned by OnMessage.
type MessageCondition[T any] struct {
	reader *Reader[T]
}

// Access declares shared access to T.
func (c *MessageCondition[T]) Access() Access {
	return c.reader.Access()
}

// Validate skips the system when no new T arrived, otherwise marks the
// pending messages as seen by this condition.
func (c *MessageCondition[T]) Validate() error {
	if c.reader.IsEmpty() {
		return &SkipError{Type: c.reader.queue.name, Reason: "no new messages"}
	}
	c.reader.Clear()
	return nil
}
