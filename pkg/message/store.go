package message

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
)

type cursorKey struct {
	owner uuid.UUID
	slot  int
	typ   reflect.Type
}

// CursorStore keeps reader cursors outside the queues, keyed by the owning
// system, the param slot within that system and the message type. Cursors
// survive across ticks for as long as their owner is not forgotten.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[cursorKey]any
}

// NewCursorStore creates an empty store.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[cursorKey]any)}
}

// CursorFor returns the cursor stored for (owner, slot, T), creating one
// attached at the queue's current end on first use.
func CursorFor[T any](s *CursorStore, owner uuid.UUID, slot int, q *Queue[T]) *Cursor[T] {
	key := cursorKey{owner: owner, slot: slot, typ: reflect.TypeFor[T]()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cursors[key]; ok {
		return c.(*Cursor[T])
	}
	c := NewCursor(q)
	s.cursors[key] = c
	return c
}

// Forget drops every cursor owned by owner and returns how many were removed.
func (s *CursorStore) Forget(owner uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.cursors {
		if k.owner == owner {
			delete(s.cursors, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored cursors.
func (s *CursorStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}
