// Package cli implements the clickstats command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/internal/config"
	"github.com/quititoday/clickstats/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	LogJSON  bool
	Store    string
}

// app is the state every subcommand shares once the root pre-run has
// loaded configuration.
type app struct {
	opts   *RootOptions
	cfg    *config.Config
	logger logger.Logger
	open   openFunc
}

// NewRootCommand creates the root command for the clickstats CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openBackend)
}

func newRootCommand(open openFunc) *cobra.Command {
	a := &app{opts: &RootOptions{}, open: open}

	cmd := &cobra.Command{
		Use:           "clickstats",
		Short:         "Record clicks and read click counters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.opts.LogLevel, "log-level", "", "log level (debug|info|warn|error|disabled), overrides CLICKSTATS_LOG_LEVEL")
	cmd.PersistentFlags().BoolVar(&a.opts.LogJSON, "log-json", false, "log as JSON, overrides CLICKSTATS_LOG_JSON")
	cmd.PersistentFlags().StringVar(&a.opts.Store, "store", "", "store backend (dynamodb|postgres|redis|memory), overrides CLICKSTATS_STORE")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newWorkerCommand(a))
	cmd.AddCommand(newInitCommand(a))
	cmd.AddCommand(newRecordCommand(a))
	cmd.AddCommand(newEnqueueCommand(a))
	cmd.AddCommand(newTotalCommand(a))
	cmd.AddCommand(newListCommand(a))
	cmd.AddCommand(newByDateCommand(a))
	cmd.AddCommand(newStatCommand(a, "daily", "daily <date>", "Show or add to the daily total of a date (YYYY-MM-DD)"))
	cmd.AddCommand(newStatCommand(a, "monthly", "monthly <month>", "Show or add to the monthly total of a month (YYYY-MM)"))

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.LogLevel
	}

	if flags.Changed("log-json") {
		cfg.Log.JSON = a.opts.LogJSON
	}

	if flags.Changed("store") {
		cfg.Store = a.opts.Store
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.NewLogger(&logger.Config{
		Level:      level,
		Output:     cmd.ErrOrStderr(),
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})

	return nil
}

// withService opens the configured store, builds a click service over it,
// and runs fn.
func (a *app) withService(ctx context.Context, fn func(*clicks.Service) error) error {
	b, err := a.open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer b.close(ctx)

	svc, err := clicks.New(b.store,
		clicks.WithStoreTimeout(a.cfg.StoreTimeout),
		clicks.WithRollups(a.cfg.Rollups),
	)
	if err != nil {
		return fmt.Errorf("failed to create click service: %w", err)
	}

	return fn(svc)
}
