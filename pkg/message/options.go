package message

import (
	"log/slog"
	"runtime"
)

const (
	defaultBatchesPerWorker = 1
	minBatchSize            = 1
	maxBatchSize            = 1 << 16
)

// Config holds tunables that can be loaded from the environment.
// Zero values select adaptive defaults.
type Config struct {
	BatchSize int `env:"TICKBUS_PAR_BATCH_SIZE" envDefault:"0"`
	Workers   int `env:"TICKBUS_PAR_WORKERS" envDefault:"0"`
}

// Option configures a Registry and the queues it creates.
type Option func(*options)

type options struct {
	logger *slog.Logger
	par    parOptions
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.DiscardHandler),
		par: parOptions{
			batchesPerWorker: defaultBatchesPerWorker,
		},
	}
}

// WithLogger sets the diagnostics sink. Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultBatchSize fixes the chunk size used by ParRead unless overridden
// per call. Non-positive values keep adaptive sizing.
func WithDefaultBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.par.batchSize = n
		}
	}
}

// WithDefaultWorkers caps the goroutines used by ParIter.ForEach.
func WithDefaultWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.par.workers = n
		}
	}
}

// WithConfig applies a loaded Config.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		WithDefaultBatchSize(cfg.BatchSize)(o)
		WithDefaultWorkers(cfg.Workers)(o)
	}
}

// ParOption tunes a single ParRead call.
type ParOption func(*parOptions)

type parOptions struct {
	batchSize        int
	workers          int
	batchesPerWorker int
}

// WithBatchSize sets a fixed chunk size.
func WithBatchSize(n int) ParOption {
	return func(o *parOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithWorkers sets the number of goroutines processing chunks.
func WithWorkers(n int) ParOption {
	return func(o *parOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBatchesPerWorker controls how many chunks adaptive sizing aims to give
// each worker. Higher values trade overhead for better load balancing.
func WithBatchesPerWorker(n int) ParOption {
	return func(o *parOptions) {
		if n > 0 {
			o.batchesPerWorker = n
		}
	}
}

func (o parOptions) workerCount() int {
	if o.workers > 0 {
		return o.workers
	}
	return max(runtime.GOMAXPROCS(0), 1)
}

// size returns the chunk size for n messages.
func (o parOptions) size(n int) int {
	if o.batchSize > 0 {
		return o.batchSize
	}
	per := max(o.batchesPerWorker, 1)
	chunks := o.workerCount() * per
	size := (n + chunks - 1) / chunks
	return min(max(size, minBatchSize), maxBatchSize)
}
