package schedule

import (
	"log/slog"
	"time"
)

const defaultTickInterval = 100 * time.Millisecond

// Config holds schedule settings that can be loaded from the environment.
type Config struct {
	Parallel     bool          `env:"TICKBUS_PARALLEL" envDefault:"true"`
	Workers      int           `env:"TICKBUS_WORKERS" envDefault:"0"`
	TickInterval time.Duration `env:"TICKBUS_TICK_INTERVAL" envDefault:"100ms"`
}

// Option configures a Schedule.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	parallel     bool
	workers      int
	tickInterval time.Duration
}

func defaultOptions() options {
	return options{
		logger:       slog.New(slog.DiscardHandler),
		parallel:     true,
		tickInterval: defaultTickInterval,
	}
}

// WithLogger sets the schedule logger. Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParallel toggles concurrent execution of non-conflicting systems.
func WithParallel(enabled bool) Option {
	return func(o *options) {
		o.parallel = enabled
	}
}

// WithWorkers caps how many systems run at once. Zero means no cap.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.workers = n
		}
	}
}

// WithTickInterval sets how often Run advances the schedule.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithConfig applies a loaded Config.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		WithParallel(cfg.Parallel)(o)
		WithWorkers(cfg.Workers)(o)
		WithTickInterval(cfg.TickInterval)(o)
	}
}
