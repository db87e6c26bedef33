package message

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/dmitrymomot/tickbus/pkg/logger"
)

// queue is the type-erased view of a Queue the registry needs to drive tick
// boundaries and diagnostics.
type queue interface {
	Rotate()
	ClearAll()
	Stats() Stats
	Name() string
}

// Registry maps message types to their queues. Each type gets a fully
// independent queue; nothing is shared across types.
//
// The registry lock only guards the type map. Rotating and reading queues is
// coordinated by the scheduler.
type Registry struct {
	mu     sync.RWMutex
	queues map[reflect.Type]queue
	order  []reflect.Type
	opts   options
}

// NewRegistry creates an empty registry. Options are applied to every queue it
// creates.
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		queues: make(map[reflect.Type]queue),
		opts:   o,
	}
}

// Register creates the queue for T. Registering the same type twice is a
// configuration error.
func Register[T any](r *Registry) (*Queue[T], error) {
	if r == nil {
		return nil, ErrNilRegistry
	}
	t := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.queues[t]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, t)
	}
	q := newQueue[T](t.String(), r.opts)
	r.queues[t] = q
	r.order = append(r.order, t)

	r.opts.logger.Debug("message type registered", logger.MessageType(q.name))
	return q, nil
}

// MustRegister is like Register but panics on error.
// Use it during setup where a misconfiguration should prevent startup.
func MustRegister[T any](r *Registry) *Queue[T] {
	q, err := Register[T](r)
	if err != nil {
		panic(err)
	}
	return q
}

// Lookup returns the queue for T or ErrNotRegistered.
func Lookup[T any](r *Registry) (*Queue[T], error) {
	if r == nil {
		return nil, ErrNilRegistry
	}
	t := reflect.TypeFor[T]()

	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.queues[t]
	if !ok {
		return nil, notRegistered(t.String())
	}
	return q.(*Queue[T]), nil
}

// Unregister clears and removes the queue for T. Existing readers and writers
// keep pointing at the detached queue. Cursors stored for T resume at the
// start of a queue registered later for the same type.
func Unregister[T any](r *Registry) bool {
	if r == nil {
		return false
	}
	t := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[t]
	if !ok {
		return false
	}
	q.ClearAll()
	delete(r.queues, t)
	for i, ot := range r.order {
		if ot == t {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// RotateAll rotates every registered queue in registration order.
// It is the tick boundary and must not overlap with any reader or writer.
func (r *Registry) RotateAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.order {
		r.queues[t].Rotate()
	}
}

// ClearAll empties every registered queue.
func (r *Registry) ClearAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.order {
		r.queues[t].ClearAll()
	}
}

// Stats returns per-type counters in registration order.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stats, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.queues[t].Stats())
	}
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// Logger returns the diagnostics logger shared by the registry's queues.
func (r *Registry) Logger() *slog.Logger {
	return r.opts.logger
}
