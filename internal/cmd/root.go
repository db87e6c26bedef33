// Package cmd implements the tickbus command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tickbus/pkg/config"
	"github.com/dmitrymomot/tickbus/pkg/httpserver"
	"github.com/dmitrymomot/tickbus/pkg/inspect"
	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
	"github.com/dmitrymomot/tickbus/pkg/schedule"
)

// appConfig is everything the CLI reads from the environment.
type appConfig struct {
	Log      logger.Config
	Bus      message.Config
	Schedule schedule.Config
	HTTP     httpserver.Config
}

// app carries state shared by subcommands once the root pre-run has loaded it.
type app struct {
	envFiles  []string
	logLevel  string
	logFormat string

	cfg    appConfig
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tickbus",
		Short: "Tick-driven double-buffered message bus",
		Long: `tickbus runs scripted scenarios against the message bus and serves a
demo schedule with read-only HTTP introspection.

Configuration comes from the environment (TICKBUS_*, LOG_*) and optional
.env files; flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "extra .env files to read (repeatable)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json or text")

	root.AddCommand(newRunCmd(a), newServeCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load[appConfig](config.WithEnvFiles(a.envFiles...))
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	switch logger.Format(strings.ToLower(cfg.Log.Format)) {
	case logger.FormatJSON, logger.FormatText:
	default:
		return fmt.Errorf("invalid log format %q: must be %q or %q", cfg.Log.Format, logger.FormatJSON, logger.FormatText)
	}

	a.cfg = cfg
	a.logger = logger.New(
		logger.WithConfig(cfg.Log),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithContextExtractors(schedule.TickExtractor, inspect.RequestIDExtractor),
	)
	return nil
}

// Execute runs the root command with a context canceled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}
