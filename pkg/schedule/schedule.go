package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
)

// RunFunc is the body of a system, called once per tick unless skipped.
type RunFunc func(ctx context.Context) error

// SetupFunc declares a system's params through b and returns its body.
type SetupFunc func(b *Builder) (RunFunc, error)

type system struct {
	id     uuid.UUID
	name   string
	run    RunFunc
	params []message.Param
	access []message.Access
	logger *slog.Logger
}

func (s *system) conflicts(o *system) bool {
	for _, a := range s.access {
		for _, b := range o.access {
			if a.Conflicts(b) {
				return true
			}
		}
	}
	return false
}

// Skip records a system that did not run and why.
type Skip struct {
	System string `json:"system"`
	Reason string `json:"reason"`
}

// Report summarizes one tick.
type Report struct {
	Tick     uint64        `json:"tick"`
	Ran      []string      `json:"ran"`
	Skipped  []Skip        `json:"skipped,omitempty"`
	Failed   []string      `json:"failed,omitempty"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// Schedule runs systems against a World once per tick.
//
// Systems execute in declaration order, grouped into batches of mutually
// non-conflicting systems. Readers of one message type can share a batch;
// a writer of T never shares a batch with any other user of T. Each batch
// finishes before the next starts, and the world's tick boundary runs after
// the last batch.
type Schedule struct {
	mu      sync.Mutex
	world   *World
	systems []*system
	opts    options
}

// New creates a schedule for w.
func New(w *World, opts ...Option) *Schedule {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Schedule{world: w, opts: o}
}

// World returns the world the schedule runs against.
func (s *Schedule) World() *World {
	return s.world
}

// Add builds a system. Param constructor failures, such as an unregistered
// message type, are returned here rather than at run time.
func (s *Schedule) Add(name string, setup SetupFunc) error {
	if setup == nil {
		return fmt.Errorf("%w: %s", ErrNilSetup, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, name)
	}

	b := newBuilder(name, s.world, s.opts.logger)
	run, err := setup(b)
	if err != nil {
		s.world.cursors.Forget(b.id)
		return fmt.Errorf("schedule: setup %q: %w", name, err)
	}
	if run == nil {
		s.world.cursors.Forget(b.id)
		return fmt.Errorf("%w: %s returned no run func", ErrNilSetup, name)
	}
	access, err := b.accesses()
	if err != nil {
		s.world.cursors.Forget(b.id)
		return fmt.Errorf("schedule: setup %q: %w", name, err)
	}

	s.systems = append(s.systems, &system{
		id:     b.id,
		name:   name,
		run:    run,
		params: b.params,
		access: access,
		logger: b.logger,
	})
	s.opts.logger.Debug("system added", logger.System(name), slog.Int("params", len(b.params)))
	return nil
}

// MustAdd is like Add but panics on error.
func (s *Schedule) MustAdd(name string, setup SetupFunc) {
	if err := s.Add(name, setup); err != nil {
		panic(err)
	}
}

// Remove drops a system and its cursors.
func (s *Schedule) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(name)
	if i < 0 {
		return false
	}
	s.world.cursors.Forget(s.systems[i].id)
	s.systems = slices.Delete(s.systems, i, i+1)
	return true
}

// Systems returns system names in declaration order.
func (s *Schedule) Systems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.systems))
	for i, sys := range s.systems {
		names[i] = sys.name
	}
	return names
}

func (s *Schedule) index(name string) int {
	return slices.IndexFunc(s.systems, func(sys *system) bool { return sys.name == name })
}

// batches groups systems greedily in declaration order. A system starts a new
// batch when it conflicts with anything in the current one.
func (s *Schedule) batches() [][]*system {
	var out [][]*system
	var cur []*system
	for _, sys := range s.systems {
		clash := !s.opts.parallel || slices.ContainsFunc(cur, sys.conflicts)
		if clash && len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, sys)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// RunOnce runs a single tick and then the tick boundary.
//
// Systems whose params ask to be skipped do not run; that is reported, not
// returned as an error. Failed and panicking systems do not stop the tick:
// their errors are joined and returned after the boundary.
func (s *Schedule) RunOnce(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	tick := s.world.Tick()
	ctx = WithTick(ctx, tick)
	rep := Report{Tick: tick}

	var errs []error
	batches := s.batches()
	rep.Batches = len(batches)
	for _, batch := range batches {
		ready := make([]*system, 0, len(batch))
		for _, sys := range batch {
			reason, err := s.validate(sys)
			switch {
			case err != nil:
				sys.logger.ErrorContext(ctx, "system validation failed", logger.Error(err))
				errs = append(errs, &SystemError{System: sys.name, Tick: tick, Err: err})
				rep.Failed = append(rep.Failed, sys.name)
			case reason != "":
				rep.Skipped = append(rep.Skipped, Skip{System: sys.name, Reason: reason})
			default:
				ready = append(ready, sys)
			}
		}

		results := s.runBatch(ctx, tick, ready)
		for i, err := range results {
			if err != nil {
				errs = append(errs, err)
				rep.Failed = append(rep.Failed, ready[i].name)
				continue
			}
			rep.Ran = append(rep.Ran, ready[i].name)
		}
	}

	s.world.Update()
	rep.Duration = time.Since(start)
	return rep, errors.Join(errs...)
}

// validate asks every param whether the system may run. A skip is returned
// as a reason; anything else is a failure.
func (s *Schedule) validate(sys *system) (string, error) {
	for _, p := range sys.params {
		err := p.Validate()
		if err == nil {
			continue
		}
		if message.IsSkip(err) {
			var skip *message.SkipError
			reason := err.Error()
			if errors.As(err, &skip) {
				reason = skip.Reason
			}
			sys.logger.Debug("system skipped", logger.Reason(reason))
			return reason, nil
		}
		return "", err
	}
	return "", nil
}

func (s *Schedule) runBatch(ctx context.Context, tick uint64, batch []*system) []error {
	results := make([]error, len(batch))
	if len(batch) == 1 || !s.opts.parallel {
		for i, sys := range batch {
			results[i] = s.runSystem(ctx, tick, sys)
		}
		return results
	}

	var g errgroup.Group
	if s.opts.workers > 0 {
		g.SetLimit(s.opts.workers)
	}
	for i, sys := range batch {
		g.Go(func() error {
			results[i] = s.runSystem(ctx, tick, sys)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Schedule) runSystem(ctx context.Context, tick uint64, sys *system) (retErr error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			retErr = &SystemError{System: sys.name, Tick: tick, Err: fmt.Errorf("%w: %v", ErrSystemPanicked, r)}
			sys.logger.ErrorContext(ctx, "system panicked", slog.Any("panic", r))
		}
	}()

	if err := sys.run(ctx); err != nil {
		sys.logger.ErrorContext(ctx, "system failed", logger.Error(err), logger.Duration(time.Since(start)))
		return &SystemError{System: sys.name, Tick: tick, Err: err}
	}
	return nil
}

// Run calls RunOnce every tick interval until ctx is done. Tick errors are
// logged and do not stop the loop.
func (s *Schedule) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.tickInterval)
	defer ticker.Stop()

	s.opts.logger.Info("schedule started",
		slog.Int("systems", len(s.Systems())),
		slog.Duration("tick_interval", s.opts.tickInterval),
		slog.Bool("parallel", s.opts.parallel))

	for {
		select {
		case <-ctx.Done():
			s.opts.logger.Info("schedule stopped", logger.Tick(s.world.Tick()))
			return nil
		case <-ticker.C:
			rep, err := s.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				s.opts.logger.ErrorContext(ctx, "tick failed", logger.Tick(rep.Tick), logger.Error(err))
			}
		}
	}
}
