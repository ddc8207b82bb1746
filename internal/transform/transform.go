// Package transform materializes the models of a layer on the query engine.
package transform

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/metrics"
)

// ExecutionResult is the outcome of materializing one model.
type ExecutionResult struct {
	Model   string       `json:"model"`
	Layer   string       `json:"layer"`
	QueryID string       `json:"query_id"`
	State   engine.State `json:"status"`
	Stats   engine.Stats `json:"statistics"`
}

// Executor drops and recreates every model of a layer.
type Executor struct {
	runner   *engine.Runner
	dialect  engine.Dialect
	catalog  *catalog.Catalog
	database string
	// defaultLocation is used when a request names no storage location.
	defaultLocation string
	logger          *zap.Logger
}

// Config wires an Executor.
type Config struct {
	Runner          *engine.Runner
	Dialect         engine.Dialect
	Catalog         *catalog.Catalog
	Database        string
	DefaultLocation string
	Logger          *zap.Logger
}

// NewExecutor builds an executor from its dependencies.
func NewExecutor(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		runner:          cfg.Runner,
		dialect:         cfg.Dialect,
		catalog:         cfg.Catalog,
		database:        cfg.Database,
		defaultLocation: cfg.DefaultLocation,
		logger:          logger,
	}
}

// RunLayer materializes each model of layer in catalog order. A failed DROP
// is logged and ignored; a failed CREATE aborts the layer.
func (e *Executor) RunLayer(ctx context.Context, layer string, storageLocation string) ([]ExecutionResult, error) {
	models, err := e.catalog.Models(catalog.Layer(layer))
	if err != nil {
		return nil, err
	}

	location := storageLocation
	if location == "" {
		location = e.defaultLocation
	}
	if err := e.dialect.ValidateLocation(location); err != nil {
		if needsLocation(models) || location != "" {
			return nil, errs.Wrap(errs.CodeInvalidInput, false, err)
		}
	}

	results := make([]ExecutionResult, 0, len(models))
	for _, model := range models {
		e.logger.Info("running model", zap.String("layer", layer), zap.String("model", model.Name))

		body := catalog.Render(model.SQL, e.database)
		drop, create, err := e.statements(model, body, location)
		if err != nil {
			return nil, err
		}

		if _, err := e.runner.Execute(ctx, engine.NewStatement(drop)); err != nil {
			e.logger.Warn("drop before create failed",
				zap.String("model", model.Name),
				zap.Error(err),
			)
		}

		exec, err := e.runner.Execute(ctx, engine.NewStatement(create))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", model.Name, err)
		}
		results = append(results, ExecutionResult{
			Model:   model.Name,
			Layer:   layer,
			QueryID: exec.ID,
			State:   exec.State,
			Stats:   exec.Stats,
		})
	}

	metrics.RecordModels(layer, len(results))
	return results, nil
}

func (e *Executor) statements(model catalog.Model, body, location string) (string, string, error) {
	switch model.Materialization {
	case catalog.MaterializationView:
		return e.dialect.DropView(model.Name), e.dialect.CreateView(model.Name, body), nil
	case catalog.MaterializationIceberg:
		return e.dialect.DropTable(model.Name), e.dialect.CreateTableAs(model.Name, body, location), nil
	case catalog.MaterializationTable:
		return e.dialect.DropTable(model.Name), e.dialect.CreateTableAs(model.Name, body, ""), nil
	default:
		return "", "", errs.New(errs.CodeInvalidInput, false, "model %s: unsupported materialization %q", model.Name, model.Materialization)
	}
}

func needsLocation(models []catalog.Model) bool {
	for _, m := range models {
		if m.Materialization == catalog.MaterializationIceberg {
			return true
		}
	}
	return false
}
