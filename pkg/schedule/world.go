package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/tickbus/pkg/broadcast"
	"github.com/dmitrymomot/tickbus/pkg/message"
)

// snapshotBuffer is how many unread snapshots a subscriber may hold.
const snapshotBuffer = 8

// Snapshot is a copy of the bus counters taken at a tick boundary. It is safe
// to read from any goroutine.
type Snapshot struct {
	Tick     uint64          `json:"tick"`
	At       time.Time       `json:"at"`
	Messages []message.Stats `json:"messages"`
}

// Find returns the stats of the named message type.
func (s Snapshot) Find(typeName string) (message.Stats, bool) {
	for _, st := range s.Messages {
		if st.Type == typeName {
			return st, true
		}
	}
	return message.Stats{}, false
}

// World owns the message registry and the cursors of every system.
type World struct {
	registry *message.Registry
	cursors  *message.CursorStore
	tick     atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
	feed     *broadcast.MemoryBroadcaster[Snapshot]
}

// NewWorld creates a world with an empty registry configured by opts.
func NewWorld(opts ...message.Option) *World {
	w := &World{
		registry: message.NewRegistry(opts...),
		cursors:  message.NewCursorStore(),
		feed:     broadcast.NewMemoryBroadcaster[Snapshot](snapshotBuffer),
	}
	w.publish()
	return w
}

// Registry returns the message registry.
func (w *World) Registry() *message.Registry {
	return w.registry
}

// Cursors returns the store holding every system's reader cursors.
func (w *World) Cursors() *message.CursorStore {
	return w.cursors
}

// Tick returns the number of completed tick boundaries.
func (w *World) Tick() uint64 {
	return w.tick.Load()
}

// Snapshot returns the counters published at the last tick boundary.
func (w *World) Snapshot() Snapshot {
	return *w.snapshot.Load()
}

// Subscribe streams every snapshot published after the call until ctx is done
// or the world is closed. Subscribers that fall behind lose the oldest ones.
func (w *World) Subscribe(ctx context.Context) broadcast.Subscriber[Snapshot] {
	return w.feed.Subscribe(ctx)
}

// Close ends every snapshot subscription.
func (w *World) Close() error {
	return w.feed.Close()
}

// Update is the tick boundary: every queue rotates, the tick counter advances
// and a fresh snapshot is published. It must not overlap with any system.
func (w *World) Update() {
	w.registry.RotateAll()
	w.tick.Add(1)
	w.publish()
}

func (w *World) publish() {
	s := &Snapshot{
		Tick:     w.tick.Load(),
		At:       time.Now(),
		Messages: w.registry.Stats(),
	}
	w.snapshot.Store(s)
	w.feed.Publish(*s)
}
