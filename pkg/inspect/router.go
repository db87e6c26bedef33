package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/tickbus/pkg/httpserver"
	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/schedule"
)

// ErrStaleSnapshot is reported by the readiness probe when no tick boundary
// happened within the configured window.
var ErrStaleSnapshot = errors.New("inspect: snapshot is stale")

// Source provides the bus counters to expose. *schedule.World implements it.
type Source interface {
	Snapshot() schedule.Snapshot
}

// Option configures the router.
type Option func(*options)

type options struct {
	logger *slog.Logger
	maxAge time.Duration
}

// WithLogger sets the logger used for encoding failures. Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxSnapshotAge makes /readyz fail when the last snapshot is older than d.
// Zero disables the check.
func WithMaxSnapshotAge(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxAge = d
		}
	}
}

// Router returns a read-only HTTP view of src:
//
//	GET /                  latest snapshot
//	GET /messages          per-type stats
//	GET /messages/{type}   stats of one message type, 404 if unknown
//	GET /healthz           liveness
//	GET /readyz            readiness, fails when the snapshot is stale
//	GET /stream            SSE feed of snapshots, only when src is a Streamer
//
// The stream speaks the datastar protocol: every tick boundary patches the
// "bus" signal with the new snapshot.
func Router(src Source, opts ...Option) chi.Router {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	h := &handlers{src: src, opts: o}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/", h.snapshot)
	r.Get("/messages", h.messages)
	r.Get("/messages/{type}", h.message)
	r.Get("/healthz", httpserver.HealthCheckHandler(o.logger))
	r.Get("/readyz", httpserver.HealthCheckHandler(o.logger, h.fresh))
	if st, ok := src.(Streamer); ok {
		r.Get("/stream", h.stream(st))
	}

	return r
}

type handlers struct {
	src  Source
	opts options
}

func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	h.write(r.Context(), writeJSON(w, http.StatusOK, Response{Data: h.src.Snapshot()}))
}

func (h *handlers) messages(w http.ResponseWriter, r *http.Request) {
	h.write(r.Context(), writeJSON(w, http.StatusOK, Response{Data: h.src.Snapshot().Messages}))
}

func (h *handlers) message(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "type"))
	if err != nil {
		h.write(r.Context(), writeError(w, http.StatusBadRequest, "bad_request", err.Error()))
		return
	}
	st, ok := h.src.Snapshot().Find(name)
	if !ok {
		h.write(r.Context(), writeError(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("message type %q is not registered", name)))
		return
	}
	h.write(r.Context(), writeJSON(w, http.StatusOK, Response{Data: st}))
}

func (h *handlers) fresh(context.Context) error {
	if h.opts.maxAge == 0 {
		return nil
	}
	if age := time.Since(h.src.Snapshot().At); age > h.opts.maxAge {
		return fmt.Errorf("%w: last tick %s ago", ErrStaleSnapshot, age.Round(time.Millisecond))
	}
	return nil
}

// RequestIDExtractor is a logger.ContextExtractor adding the id assigned by
// the router's request id middleware.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.RequestID(id), true
	}
	return slog.Attr{}, false
}

func (h *handlers) write(ctx context.Context, err error) {
	if err != nil {
		h.opts.logger.ErrorContext(ctx, "failed to write response", logger.Error(err))
	}
}
