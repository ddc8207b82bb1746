package trigger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/nucleus/lakehouse/internal/errs"
)

// WorkflowClient is the subset of client.Client the trigger needs.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
}

// Temporal triggers a registered workflow type on a task queue. The
// definition id is the workflow type name and the execution id is the
// workflow id.
type Temporal struct {
	Client    WorkflowClient
	TaskQueue string
	// Args are passed to the workflow on start.
	Args []interface{}
}

func (t *Temporal) Start(ctx context.Context, definitionID string) (string, error) {
	if definitionID == "" {
		return "", errs.New(errs.CodeInvalidInput, false, "workflow type is required")
	}
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-%s", definitionID, uuid.NewString()),
		TaskQueue: t.TaskQueue,
	}
	run, err := t.Client.ExecuteWorkflow(ctx, opts, definitionID, t.Args...)
	if err != nil {
		return "", errs.Wrap(errs.CodeTriggerFailed, true, fmt.Errorf("start workflow %s: %w", definitionID, err))
	}
	return run.GetID(), nil
}

func (t *Temporal) Status(ctx context.Context, executionID string) (State, error) {
	resp, err := t.Client.DescribeWorkflowExecution(ctx, executionID, "")
	if err != nil {
		return "", errs.Wrap(errs.CodeTriggerFailed, true, fmt.Errorf("describe workflow %s: %w", executionID, err))
	}
	return temporalState(resp.GetWorkflowExecutionInfo().GetStatus()), nil
}

func temporalState(s enumspb.WorkflowExecutionStatus) State {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return StateSucceeded
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return StateFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return StateTimedOut
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED, enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return StateAborted
	default:
		// RUNNING, CONTINUED_AS_NEW and UNSPECIFIED keep the caller polling.
		return StateRunning
	}
}
