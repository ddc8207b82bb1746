// Package app wires the lakehouse components from configuration. The
// binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/config"
	"github.com/nucleus/lakehouse/internal/engine"
	"github.com/nucleus/lakehouse/internal/engine/athena"
	"github.com/nucleus/lakehouse/internal/engine/postgres"
	"github.com/nucleus/lakehouse/internal/metrics"
	"github.com/nucleus/lakehouse/internal/metrics/prompush"
	"github.com/nucleus/lakehouse/internal/objectstore"
	"github.com/nucleus/lakehouse/internal/poll"
	"github.com/nucleus/lakehouse/internal/quality"
	"github.com/nucleus/lakehouse/internal/report"
	"github.com/nucleus/lakehouse/internal/transform"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Catalog   *catalog.Catalog
	Client    engine.Client
	Runner    *engine.Runner
	Transform *transform.Executor
	Quality   *quality.Runner
	Reports   *report.Renderer
	// Store is nil when no bucket is configured.
	Store objectstore.Store
	// Postgres is set when the postgres engine is selected.
	Postgres *postgres.Engine
}

// New validates cfg and builds every component.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat

	var dialect engine.Dialect
	switch cfg.EngineKind {
	case config.EnginePostgres:
		pg, err := postgres.Open(ctx, postgres.Config{URL: cfg.PostgresURL, Schema: cfg.Database}, logger.Named("postgres"))
		if err != nil {
			return nil, err
		}
		a.Client, a.Postgres, dialect = pg, pg, postgres.Dialect{}
	default:
		client, err := athena.New(ctx, athena.Config{
			Region:    cfg.AWSRegion,
			Database:  cfg.Database,
			Workgroup: cfg.Workgroup,
		})
		if err != nil {
			return nil, err
		}
		a.Client, dialect = client, athena.Dialect{}
	}

	a.Runner = engine.NewRunner(a.Client, poll.Policy{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
	}, logger.Named("engine"))

	a.Transform = transform.NewExecutor(transform.Config{
		Runner:          a.Runner,
		Dialect:         dialect,
		Catalog:         cat,
		Database:        cfg.Database,
		DefaultLocation: cfg.DefaultStorageLocation(),
		Logger:          logger.Named("transform"),
	})

	a.Quality, err = quality.NewRunner(quality.Config{
		Runner:       a.Runner,
		Catalog:      cat,
		Database:     cfg.Database,
		ResultsTable: cfg.ResultsTable,
		Project:      cfg.ProjectName,
		FetchLimit:   cfg.FailureFetchLimit,
		Logger:       logger.Named("quality"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Reports, err = report.NewRenderer(report.Config{
		Querier:      a.Runner,
		Catalog:      cat,
		Database:     cfg.Database,
		ResultsTable: cfg.ResultsTable,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.ObjectStoreBucket != "" {
		store, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectStoreEndpoint,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			Region:    cfg.ObjectStoreRegion,
			UseSSL:    cfg.ObjectStoreUseSSL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store
	}

	return a, nil
}

// SetupMetrics installs the Pushgateway backend when configured.
func SetupMetrics(cfg *config.Config, job string, logger *zap.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	backend, err := prompush.NewBackend(job, cfg.PushgatewayURL)
	if err != nil {
		logger.Warn("metrics disabled", zap.Error(err))
		return
	}
	metrics.SetBackend(backend)
}

// FlushMetrics pushes collected metrics, logging rather than failing.
func FlushMetrics(logger *zap.Logger) {
	if err := metrics.Flush(); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}
}

// Close releases engine connections.
func (a *App) Close() {
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		cat, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
		}
		return cat, nil
	}
	return catalog.DefaultFor(cfg.EngineKind)
}
