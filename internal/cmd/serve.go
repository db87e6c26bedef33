package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tickbus/pkg/httpserver"
	"github.com/dmitrymomot/tickbus/pkg/inspect"
	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
	"github.com/dmitrymomot/tickbus/pkg/schedule"
)

var errTickLimit = errors.New("tick limit reached")

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		ticks    uint64
		rate     int
		lagEvery uint64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo schedule with HTTP introspection",
		Long: `Serve runs a demo producer/consumer schedule on the bus and exposes the
per-tick queue statistics over HTTP:

  GET /debug/bus/                  latest snapshot
  GET /debug/bus/messages/{type}   one message type
  GET /debug/bus/readyz            fails when ticks stall
  GET /debug/bus/stream            live snapshots (SSE)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rate < 0 {
				return fmt.Errorf("rate must be >= 0, got %d", rate)
			}
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return a.serve(cmd.Context(), ticks, &demo{rate: rate, lagEvery: lagEvery})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TICKBUS_HTTP_ADDR)")
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	cmd.Flags().IntVar(&rate, "rate", 4, "pings emitted per tick")
	cmd.Flags().Uint64Var(&lagEvery, "lag-every", 3, "the laggard reads only every N ticks (0 disables it)")
	return cmd
}

func (a *app) serve(ctx context.Context, ticks uint64, d *demo) error {
	world := schedule.NewWorld(message.WithLogger(a.logger), message.WithConfig(a.cfg.Bus))
	defer world.Close()
	if err := d.register(world); err != nil {
		return err
	}

	sched := schedule.New(world, schedule.WithLogger(a.logger), schedule.WithConfig(a.cfg.Schedule))
	if err := d.install(sched); err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if ticks > 0 {
		sched.MustAdd("stop", func(*schedule.Builder) (schedule.RunFunc, error) {
			return func(ctx context.Context) error {
				if tick, _ := schedule.TickFromContext(ctx); tick+1 >= ticks {
					cancel(errTickLimit)
				}
				return nil
			}, nil
		})
	}

	r := chi.NewRouter()
	r.Mount("/debug/bus", inspect.Router(world,
		inspect.WithLogger(a.logger),
		inspect.WithMaxSnapshotAge(10*a.cfg.Schedule.TickInterval),
	))
	srv := httpserver.NewFromConfig(a.cfg.HTTP, httpserver.WithLogger(a.logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx, r) })

	err := g.Wait()
	a.logger.Info("demo finished",
		logger.Tick(world.Tick()),
		slog.Int64("ping_sum", d.sum.Load()),
		slog.Int64("pongs", d.pongs.Load()))
	return err
}
