package schedule

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
)

// Builder is handed to a system's setup function. It implements
// message.Builder, so message.ReaderFor, message.WriterFor and friends can be
// called with it directly.
type Builder struct {
	id     uuid.UUID
	name   string
	world  *World
	logger *slog.Logger
	slot   int
	params []message.Param
}

func newBuilder(name string, w *World, l *slog.Logger) *Builder {
	id := uuid.New()
	return &Builder{
		id:     id,
		name:   name,
		world:  w,
		logger: l.With(logger.System(name), logger.SystemID(id)),
	}
}

// Owner returns the system's identity. Cursors are stored under it.
func (b *Builder) Owner() uuid.UUID {
	return b.id
}

func (b *Builder) Registry() *message.Registry {
	return b.world.registry
}

func (b *Builder) Cursors() *message.CursorStore {
	return b.world.cursors
}

// Slot allocates the next param slot of this system.
func (b *Builder) Slot() int {
	s := b.slot
	b.slot++
	return s
}

// Declare records p for conflict detection and pre-run validation. A param
// already declared is ignored, so it is validated once per tick.
func (b *Builder) Declare(p message.Param) {
	if slices.Contains(b.params, p) {
		return
	}
	b.params = append(b.params, p)
}

// RunIf adds a run condition. The system is skipped on any tick where the
// condition's Validate returns a skip. Conditions built with message.OnMessage
// are already declared; passing them here has no further effect.
func (b *Builder) RunIf(cond message.Param) {
	b.Declare(cond)
}

// Name returns the system name.
func (b *Builder) Name() string {
	return b.name
}

// Logger returns a logger tagged with the system name and id.
func (b *Builder) Logger() *slog.Logger {
	return b.logger
}

// World returns the world the system is being added to.
func (b *Builder) World() *World {
	return b.world
}

// accesses collects the declared claims and rejects a system that writes a
// type it also reads or writes through another param.
func (b *Builder) accesses() ([]message.Access, error) {
	out := make([]message.Access, 0, len(b.params))
	for _, p := range b.params {
		a := p.Access()
		for _, prev := range out {
			if prev.Conflicts(a) {
				return nil, fmt.Errorf("%w: %s declared for %s and %s",
					ErrAccessConflict, a.Name, prev.Mode, a.Mode)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
