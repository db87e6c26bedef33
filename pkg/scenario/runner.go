package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
)

// Event is the payload type scenarios send.
type Event struct {
	Body string
}

// Observation records what a step saw.
type Observation struct {
	Tick     int      `json:"tick"`
	Step     int      `json:"step"`
	Kind     Kind     `json:"kind"`
	Reader   string   `json:"reader,omitempty"`
	IDs      []uint64 `json:"ids,omitempty"`
	Payloads []string `json:"payloads,omitempty"`
	Missed   uint64   `json:"missed,omitempty"`
	Len      int      `json:"len,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	Name         string        `json:"name"`
	Ticks        int           `json:"ticks"`
	Observations []Observation `json:"observations"`
	Stats        message.Stats `json:"stats"`
}

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger that receives bus diagnostics such as
// missed-message warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryOptions passes extra options to the scenario's registry.
func WithRegistryOptions(opts ...message.Option) Option {
	return func(r *runner) {
		r.regOpts = append(r.regOpts, opts...)
	}
}

type runner struct {
	logger  *slog.Logger
	regOpts []message.Option

	queue   *message.Queue[Event]
	decls   map[string]ReaderConfig
	readers map[string]*message.Reader[Event]
}

// Run executes sc against a fresh registry. Failed expectations do not stop
// the run; they are joined with ErrExpectation and returned alongside the
// full Result.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (Result, error) {
	if err := sc.Validate(); err != nil {
		return Result{}, err
	}

	r := &runner{
		logger:  logger.Nop(),
		decls:   make(map[string]ReaderConfig, len(sc.Readers)),
		readers: make(map[string]*message.Reader[Event], len(sc.Readers)),
	}
	for _, opt := range opts {
		opt(r)
	}

	log := r.logger.With(slog.String("scenario", sc.Name))
	reg := message.NewRegistry(append([]message.Option{message.WithLogger(log)}, r.regOpts...)...)
	q, err := message.Register[Event](reg)
	if err != nil {
		return Result{}, err
	}
	r.queue = q

	for _, decl := range sc.Readers {
		r.decls[decl.Name] = decl
		if !decl.Deferred {
			r.readers[decl.Name] = message.NewReader(q, nil)
		}
	}

	res := Result{Name: sc.Name}
	var errs []error
	for ti, tick := range sc.Ticks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		for si, step := range tick.Steps {
			obs, err := r.step(ti, si, step)
			if obs != nil {
				res.Observations = append(res.Observations, *obs)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("tick %d step %d: %w", ti, si, err))
			}
		}
		reg.RotateAll()
		res.Ticks++
		log.Debug("tick complete", logger.Tick(uint64(ti)), slog.Int("retained", q.Len()))
	}
	res.Stats = q.Stats()

	if len(errs) > 0 {
		log.Warn("scenario failed", slog.Int("failures", len(errs)))
	}
	return res, errors.Join(errs...)
}

func (r *runner) step(ti, si int, s Step) (*Observation, error) {
	kind, name, err := s.kind()
	if err != nil {
		return nil, err
	}
	obs := &Observation{Tick: ti, Step: si, Kind: kind, Reader: name}

	if kind == KindSend {
		events := make([]Event, len(s.Send))
		for i, body := range s.Send {
			events[i] = Event{Body: body}
		}
		ids := r.queue.SendBatch(events...)
		for id := ids.Start; id < ids.End; id++ {
			obs.IDs = append(obs.IDs, uint64(id))
		}
		obs.Payloads = s.Send
		return obs, nil
	}

	if kind == KindAttach {
		r.readers[name] = message.NewReader(r.queue, nil)
		return obs, nil
	}

	rd, ok := r.readers[name]
	if !ok {
		return obs, fmt.Errorf("%w: %q", ErrNotAttached, name)
	}

	switch kind {
	case KindClear:
		rd.Clear()
		return obs, nil
	case KindProbe:
		obs.Len = rd.Probe().Len()
		return obs, check(s, obs)
	}

	if r.decls[name].Gate {
		if err := message.NewPopulatedReader(rd).Validate(); message.IsSkip(err) {
			obs.Skipped = true
			obs.Missed = rd.Cursor().Missed()
			return obs, check(s, obs)
		}
	}

	before := rd.Cursor().Missed()
	if s.Parallel {
		for _, batch := range rd.ParRead(message.WithBatchSize(s.BatchSize)).Batches() {
			for _, m := range batch {
				obs.IDs = append(obs.IDs, uint64(m.ID))
				obs.Payloads = append(obs.Payloads, m.Payload.Body)
			}
		}
	} else {
		for id, ev := range rd.ReadWithID() {
			obs.IDs = append(obs.IDs, uint64(id))
			obs.Payloads = append(obs.Payloads, ev.Body)
		}
	}
	obs.Missed = rd.Cursor().Missed() - before
	return obs, check(s, obs)
}

func check(s Step, obs *Observation) error {
	var errs []error
	if s.Expect != nil && !slices.Equal(s.Expect, obs.Payloads) {
		errs = append(errs, fmt.Errorf("%w: payloads %q, want %q", ErrExpectation, obs.Payloads, s.Expect))
	}
	if s.ExpectIDs != nil && !slices.Equal(s.ExpectIDs, obs.IDs) {
		errs = append(errs, fmt.Errorf("%w: ids %v, want %v", ErrExpectation, obs.IDs, s.ExpectIDs))
	}
	if s.ExpectMissed != nil && *s.ExpectMissed != obs.Missed {
		errs = append(errs, fmt.Errorf("%w: missed %d, want %d", ErrExpectation, obs.Missed, *s.ExpectMissed))
	}
	if s.ExpectLen != nil && *s.ExpectLen != obs.Len {
		errs = append(errs, fmt.Errorf("%w: len %d, want %d", ErrExpectation, obs.Len, *s.ExpectLen))
	}
	if s.ExpectSkip != nil && *s.ExpectSkip != obs.Skipped {
		errs = append(errs, fmt.Errorf("%w: skipped %t, want %t", ErrExpectation, obs.Skipped, *s.ExpectSkip))
	}
	return errors.Join(errs...)
}
