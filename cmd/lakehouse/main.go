// Command lakehouse runs the pipeline steps from a shell: dataset
// generation, layer materialization, data-quality tests, the dashboard and
// the workflow trigger.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/config"
	"github.com/nucleus/lakehouse/internal/logging"
)

type rootOptions struct {
	engine   string
	database string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "lakehouse",
		Short:        "Lakehouse pipeline coordinator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.engine, "engine", "", "query engine (athena or postgres); overrides LAKEHOUSE_ENGINE")
	root.PersistentFlags().StringVar(&opts.database, "database", "", "catalog database; overrides GLUE_DATABASE")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level; overrides LOG_LEVEL")

	root.AddCommand(
		newGenerateCmd(opts),
		newRunLayerCmd(opts),
		newRunTestsCmd(opts),
		newReportCmd(opts),
		newTriggerCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

// load reads the environment and applies flag overrides.
func (o *rootOptions) load() (*config.Config, *zap.Logger) {
	cfg := config.Load()
	if o.engine != "" {
		cfg.EngineKind = o.engine
	}
	if o.database != "" {
		cfg.Database = o.database
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, logging.MustNew(cfg.LogLevel)
}

// withApp builds the wired components around fn and pushes metrics after it.
func withApp(o *rootOptions, fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger := o.load()
		defer func() { _ = logger.Sync() }()

		app.SetupMetrics(cfg, "lakehouse-cli", logger)
		defer app.FlushMetrics(logger)

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("startup failed", zap.Error(err))
			return err
		}
		defer a.Close()

		if err := fn(cmd, args, a); err != nil {
			logger.Error("command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
