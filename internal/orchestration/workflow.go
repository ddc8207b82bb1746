package orchestration

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/quality"
	"github.com/nucleus/lakehouse/internal/transform"
)

// PipelineWorkflowName is the workflow type the trigger starts.
const PipelineWorkflowName = "lakehousePipelineWorkflow"

// Error types the pipeline fails with besides the errs codes.
const (
	ErrTypeTestsErrored = "TESTS_ERRORED"
)

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: time.Hour,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second * 5,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute * 5,
		MaximumAttempts:    3,
		NonRetryableErrorTypes: []string{
			errs.CodeUnknownLayer,
			errs.CodeInvalidInput,
		},
	},
}

// PipelineInput configures one pipeline run.
type PipelineInput struct {
	StorageLocation string `json:"storage_location,omitempty"`
	// Layers run in order. Defaults to staging then marts.
	Layers []string `json:"layers,omitempty"`
}

// PipelineResult collects every activity outcome.
type PipelineResult struct {
	Layers map[string][]transform.ExecutionResult `json:"layers"`
	Tests  *quality.Summary                       `json:"tests"`
	Status quality.RunStatus                      `json:"status"`
}

// DefaultLayers is the layer order when PipelineInput names none.
func DefaultLayers() []string {
	return []string{string(catalog.LayerStaging), string(catalog.LayerMarts)}
}

// PipelineWorkflow runs each layer and then the tests of every layer.
// Failing tests complete the workflow; errored tests or an unrecorded
// result set fail it.
func PipelineWorkflow(ctx workflow.Context, input PipelineInput) (*PipelineResult, error) {
	logger := workflow.GetLogger(ctx)
	actCtx := workflow.WithActivityOptions(ctx, activityOptions)

	layers := input.Layers
	if len(layers) == 0 {
		layers = DefaultLayers()
	}

	result := &PipelineResult{Layers: make(map[string][]transform.ExecutionResult, len(layers))}
	for _, layer := range layers {
		var execs []transform.ExecutionResult
		err := workflow.ExecuteActivity(actCtx, RunLayerActivity, RunLayerInput{
			Layer:           layer,
			StorageLocation: input.StorageLocation,
		}).Get(ctx, &execs)
		if err != nil {
			return nil, err
		}
		logger.Info("layer complete", "layer", layer, "models", len(execs))
		result.Layers[layer] = execs
	}

	var summary quality.Summary
	if err := workflow.ExecuteActivity(actCtx, RunTestsActivity, RunTestsInput{}).Get(ctx, &summary); err != nil {
		return nil, err
	}
	result.Tests = &summary
	result.Status = summary.Status()

	if summary.Recording.Status == quality.RecordingError {
		return result, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("test results for invocation %s were not recorded: %s", summary.InvocationID, summary.Recording.Error),
			errs.CodeRecordingFailed, nil)
	}
	if result.Status == quality.RunError {
		return result, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("%d of %d tests errored", summary.Errors, summary.Total),
			ErrTypeTestsErrored, nil)
	}
	logger.Info("pipeline complete", "status", string(result.Status), "invocation_id", summary.InvocationID)
	return result, nil
}

// Registry is implemented by worker.Worker and the Temporal test environment.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivity(a interface{})
}

// Register adds the pipeline workflow and activities to r.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(PipelineWorkflow, workflow.RegisterOptions{Name: PipelineWorkflowName})
	r.RegisterActivity(acts)
}
