// Package trigger starts an externally defined workflow and waits for it to
// reach a terminal state.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/poll"
)

// State is the coarse lifecycle of a workflow execution.
type State string

const (
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
	StateAborted   State = "ABORTED"
)

// IsTerminal reports whether the execution has stopped.
func (s State) IsTerminal() bool {
	return s != StateRunning && s != ""
}

// Trigger starts and inspects workflow executions.
type Trigger interface {
	Start(ctx context.Context, definitionID string) (executionID string, err error)
	Status(ctx context.Context, executionID string) (State, error)
}

// Policy bounds Wait.
type Policy struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPolicy polls every minute for up to two hours.
var DefaultPolicy = Policy{Interval: time.Minute, Timeout: 2 * time.Hour}

// Wait polls the execution until it is terminal. SUCCEEDED returns a nil
// error; any other terminal state returns E_TRIGGER_FAILED together with the
// state. Running past the timeout returns E_TRIGGER_TIMEOUT.
func Wait(ctx context.Context, t Trigger, executionID string, p Policy, logger *zap.Logger) (State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var state State
	err := poll.Until(ctx, poll.Timeout(p.Interval, p.Timeout), func(ctx context.Context, attempt int) (bool, error) {
		s, err := t.Status(ctx, executionID)
		if err != nil {
			return false, err
		}
		state = s
		logger.Debug("workflow status",
			zap.String("execution_id", executionID),
			zap.String("state", string(s)),
			zap.Int("attempt", attempt))
		return s.IsTerminal(), nil
	})
	switch {
	case errors.Is(err, poll.ErrExhausted):
		return state, errs.New(errs.CodeTriggerTimeout, true, "execution %s still %s after %s", executionID, state, p.Timeout)
	case err != nil:
		return state, errs.Wrap(errs.CodeTriggerFailed, true, fmt.Errorf("poll execution %s: %w", executionID, err))
	case state != StateSucceeded:
		return state, errs.New(errs.CodeTriggerFailed, false, "execution %s finished %s", executionID, state)
	}
	logger.Info("workflow succeeded", zap.String("execution_id", executionID))
	return state, nil
}

// Run starts the definition and waits for it.
func Run(ctx context.Context, t Trigger, definitionID string, p Policy, logger *zap.Logger) (string, State, error) {
	id, err := t.Start(ctx, definitionID)
	if err != nil {
		return "", "", err
	}
	if logger != nil {
		logger.Info("workflow started", zap.String("definition", definitionID), zap.String("execution_id", id))
	}
	state, err := Wait(ctx, t, id, p, logger)
	return id, state, err
}
