// Package main runs the Temporal worker that executes the lakehouse
// pipeline workflow.
package main

import (
	"context"
	"os"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/config"
	"github.com/nucleus/lakehouse/internal/logging"
	"github.com/nucleus/lakehouse/internal/orchestration"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNew(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting lakehouse worker",
		zap.String("address", cfg.TemporalAddress),
		zap.String("namespace", cfg.TemporalNamespace),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("engine", cfg.EngineKind),
	)

	app.SetupMetrics(cfg, "lakehouse-worker", logger)
	defer app.FlushMetrics(logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to wire components", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	c, err := app.DialTemporal(cfg, logger)
	if err != nil {
		logger.Error("failed to create Temporal client", zap.Error(err))
		os.Exit(1)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	orchestration.Register(w, &orchestration.Activities{
		Transform: a.Transform,
		Quality:   a.Quality,
	})
	logger.Info("registered workflow and activities",
		zap.String("workflow", orchestration.PipelineWorkflowName),
		zap.Strings("activities", []string{orchestration.RunLayerActivity, orchestration.RunTestsActivity}),
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker failed", zap.Error(err))
		os.Exit(1)
	}
}
