// Package orchestration declares the Temporal pipeline that runs the layers
// and then the data-quality suite.
package orchestration

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/quality"
	"github.com/nucleus/lakehouse/internal/transform"
)

// Activity names as registered on the worker.
const (
	RunLayerActivity = "RunLayer"
	RunTestsActivity = "RunTests"
)

// LayerRunner materializes a layer. Satisfied by *transform.Executor.
type LayerRunner interface {
	RunLayer(ctx context.Context, layer string, storageLocation string) ([]transform.ExecutionResult, error)
}

// TestRunner runs the data-quality suite. Satisfied by *quality.Runner.
type TestRunner interface {
	RunTests(ctx context.Context, layer string) (*quality.Summary, error)
}

// RunLayerInput is the RunLayer activity argument.
type RunLayerInput struct {
	Layer           string `json:"layer"`
	StorageLocation string `json:"storage_location,omitempty"`
}

// RunTestsInput is the RunTests activity argument. An empty layer runs the
// tests of every layer.
type RunTestsInput struct {
	Layer string `json:"layer,omitempty"`
}

// Activities binds the executors to Temporal.
type Activities struct {
	Transform LayerRunner
	Quality   TestRunner
}

func (a *Activities) RunLayer(ctx context.Context, in RunLayerInput) ([]transform.ExecutionResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("RunLayer", "layer", in.Layer, "attempt", activity.GetInfo(ctx).Attempt)

	results, err := a.Transform.RunLayer(ctx, in.Layer, in.StorageLocation)
	if err != nil {
		return nil, applicationError(err)
	}
	return results, nil
}

func (a *Activities) RunTests(ctx context.Context, in RunTestsInput) (*quality.Summary, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("RunTests", "layer", in.Layer, "attempt", activity.GetInfo(ctx).Attempt)

	summary, err := a.Quality.RunTests(ctx, in.Layer)
	if err != nil {
		return nil, applicationError(err)
	}
	logger.Info("RunTests finished",
		"invocation_id", summary.InvocationID,
		"total", summary.Total,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"errors", summary.Errors,
	)
	return summary, nil
}

// applicationError carries the error code as the Temporal error type so the
// retry policy can match on it.
func applicationError(err error) error {
	code := errs.CodeOf(err)
	if errs.IsRetryable(err) {
		return temporal.NewApplicationError(err.Error(), code, err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), code, err)
}
