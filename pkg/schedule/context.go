package schedule

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/tickbus/pkg/logger"
)

type tickKey struct{}

// WithTick returns a copy of ctx carrying the current tick number.
func WithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, tickKey{}, tick)
}

// TickFromContext returns the tick a system is running in.
func TickFromContext(ctx context.Context) (uint64, bool) {
	tick, ok := ctx.Value(tickKey{}).(uint64)
	return tick, ok
}

// TickExtractor adds the tick number to log records written with a context
// that passed through a schedule. Use it with logger.WithContextExtractors.
func TickExtractor(ctx context.Context) (slog.Attr, bool) {
	tick, ok := TickFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.Tick(tick), true
}
