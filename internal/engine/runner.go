package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/metrics"
	"github.com/nucleus/lakehouse/internal/poll"
)

const (
	logSQLLimit  = 500
	queryPageMax = 1000
)

// Execution is the terminal record of one submitted statement.
type Execution struct {
	ID       string        `json:"query_id"`
	State    State         `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Stats    Stats         `json:"statistics"`
	Duration time.Duration `json:"-"`
}

// ExecutionError reports an execution that ended FAILED or CANCELLED.
type ExecutionError struct {
	Execution *Execution
}

func (e *ExecutionError) Error() string {
	reason := e.Execution.Reason
	if reason == "" {
		reason = "Unknown"
	}
	return fmt.Sprintf("query %s %s: %s", e.Execution.ID, e.Execution.State, reason)
}

// Runner submits statements and blocks until they reach a terminal state.
type Runner struct {
	client Client
	policy poll.Policy
	logger *zap.Logger
}

// NewRunner wraps a client with a poll policy.
func NewRunner(client Client, policy poll.Policy, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, policy: policy, logger: logger}
}

// Policy returns the poll policy used for every wait.
func (r *Runner) Policy() poll.Policy {
	return r.policy
}

// Await submits stmt and waits for a terminal state. A FAILED or CANCELLED
// execution is returned without an error; submit failures, status failures
// and an exhausted attempt budget are errors.
func (r *Runner) Await(ctx context.Context, stmt Statement) (*Execution, error) {
	r.logger.Debug("submitting query", zap.String("sql", truncate(stmt.SQL, logSQLLimit)), zap.Int("params", len(stmt.Params)))

	started := time.Now()
	id, err := r.client.Start(ctx, stmt)
	if err != nil {
		return nil, errs.Wrap(errs.CodeEngineExecutionFailed, true, fmt.Errorf("start query: %w", err))
	}
	r.logger.Info("query started", zap.String("execution_id", id))

	var status *Status
	err = poll.Until(ctx, r.policy, func(ctx context.Context, attempt int) (bool, error) {
		s, err := r.client.Status(ctx, id)
		if err != nil {
			return false, err
		}
		status = s
		return s.State.IsTerminal(), nil
	})
	elapsed := time.Since(started)

	switch {
	case errors.Is(err, poll.ErrExhausted):
		metrics.RecordQuery("TIMEOUT", elapsed)
		return nil, errs.New(errs.CodeEngineTimeout, true, "query %s timed out after %d attempts", id, r.policy.MaxAttempts)
	case err != nil:
		return nil, errs.Wrap(errs.CodeEngineExecutionFailed, true, fmt.Errorf("query %s status: %w", id, err))
	}

	exec := &Execution{
		ID:       id,
		State:    status.State,
		Reason:   status.Reason,
		Stats:    status.Stats,
		Duration: elapsed,
	}
	metrics.RecordQuery(string(exec.State), elapsed)
	r.logger.Info("query finished",
		zap.String("execution_id", id),
		zap.String("state", string(exec.State)),
		zap.Duration("elapsed", elapsed),
	)
	return exec, nil
}

// Execute is Await that also fails on FAILED and CANCELLED executions with an
// E_ENGINE_EXECUTION_FAILED error wrapping *ExecutionError.
func (r *Runner) Execute(ctx context.Context, stmt Statement) (*Execution, error) {
	exec, err := r.Await(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if exec.State != StateSucceeded {
		return exec, errs.Wrap(errs.CodeEngineExecutionFailed, false, &ExecutionError{Execution: exec})
	}
	return exec, nil
}

// Results reads one page of an execution's rows.
func (r *Runner) Results(ctx context.Context, executionID string, req ResultsRequest) (*ResultPage, error) {
	page, err := r.client.Results(ctx, executionID, req)
	if err != nil {
		return nil, errs.Wrap(errs.CodeEngineExecutionFailed, true, fmt.Errorf("query %s results: %w", executionID, err))
	}
	return page, nil
}

// Query executes stmt and reads every result page into column/value maps.
func (r *Runner) Query(ctx context.Context, stmt Statement) ([]map[string]string, error) {
	exec, err := r.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	token := ""
	for {
		page, err := r.Results(ctx, exec.ID, ResultsRequest{MaxRows: queryPageMax, NextToken: token})
		if err != nil {
			return nil, err
		}
		for _, values := range page.Rows {
			row := make(map[string]string, len(page.Columns))
			for i, col := range page.Columns {
				if i < len(values) {
					row[col] = values[i]
				} else {
					row[col] = ""
				}
			}
			rows = append(rows, row)
		}
		if page.NextToken == "" {
			return rows, nil
		}
		token = page.NextToken
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
