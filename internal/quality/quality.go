// Package quality runs data-quality test predicates and records one result
// row per test in the Elementary results table.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
	"github.com/nucleus/lakehouse/internal/metrics"
)

// TestStatus classifies a single test execution.
type TestStatus string

const (
	StatusPass  TestStatus = "pass"
	StatusFail  TestStatus = "fail"
	StatusError TestStatus = "error"
)

// RunStatus is the overall outcome of a test run.
type RunStatus string

const (
	RunSuccess     RunStatus = "SUCCESS"
	RunTestsFailed RunStatus = "TESTS_FAILED"
	RunError       RunStatus = "ERROR"
)

const (
	RecordingRecorded  = "recorded"
	RecordingNoResults = "no_results"
	RecordingError     = "error"
)

// Result is the outcome of one test predicate.
type Result struct {
	TestName      string        `json:"test_name"`
	Layer         string        `json:"layer"`
	Model         string        `json:"model"`
	Column        string        `json:"column"`
	TestType      string        `json:"test_type"`
	Status        TestStatus    `json:"status"`
	Failures      int           `json:"failures"`
	Truncated     bool          `json:"truncated,omitempty"`
	ExecutionTime float64       `json:"execution_time"`
	Duration      time.Duration `json:"-"`
	QueryID       string        `json:"query_id,omitempty"`
	InvocationID  string        `json:"invocation_id"`
	ExecutedAt    time.Time     `json:"executed_at"`
	Error         string        `json:"error,omitempty"`
}

// Recording reports what happened to the results INSERT.
type Recording struct {
	Status  string `json:"status"`
	QueryID string `json:"query_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates one invocation of the test suite.
type Summary struct {
	InvocationID string    `json:"invocation_id"`
	Layer        string    `json:"layer,omitempty"`
	Total        int       `json:"total"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	Errors       int       `json:"errors"`
	Results      []Result  `json:"results"`
	Recording    Recording `json:"recording"`
	// RecordingErr is an E_RECORDING_FAILED error when the INSERT failed.
	RecordingErr error `json:"-"`
}

// Status is ERROR if any test errored, else TESTS_FAILED if any failed,
// else SUCCESS. Recording failures are reported separately.
func (s *Summary) Status() RunStatus {
	switch {
	case s.Errors > 0:
		return RunError
	case s.Failed > 0:
		return RunTestsFailed
	default:
		return RunSuccess
	}
}

// Config wires a Runner.
type Config struct {
	Runner       *engine.Runner
	Catalog      *catalog.Catalog
	Database     string
	ResultsTable string
	Project      string
	// FetchLimit bounds the rows read to count failures.
	FetchLimit int
	Logger     *zap.Logger
}

// Runner executes test predicates against the engine.
type Runner struct {
	runner       *engine.Runner
	catalog      *catalog.Catalog
	database     string
	resultsTable string
	project      string
	fetchLimit   int
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewRunner validates the configuration and builds a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if !catalog.ValidIdentifier(cfg.ResultsTable) {
		return nil, fmt.Errorf("invalid results table name %q", cfg.ResultsTable)
	}
	if cfg.FetchLimit <= 0 {
		return nil, fmt.Errorf("fetch limit must be positive")
	}
	project := cfg.Project
	if project == "" {
		project = "lakehouse"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		runner:       cfg.Runner,
		catalog:      cfg.Catalog,
		database:     cfg.Database,
		resultsTable: cfg.ResultsTable,
		project:      project,
		fetchLimit:   cfg.FetchLimit,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// RunTests executes every test of layer (all layers when empty) in catalog
// order, then records the results in one INSERT.
func (r *Runner) RunTests(ctx context.Context, layer string) (*Summary, error) {
	tests, err := r.catalog.Tests(catalog.Layer(layer))
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		InvocationID: r.newID(),
		Layer:        layer,
		Results:      make([]Result, 0, len(tests)),
	}
	for _, test := range tests {
		r.logger.Info("running test", zap.String("test", test.Name), zap.String("invocation_id", summary.InvocationID))
		result := r.runTest(ctx, test, summary.InvocationID)
		r.logger.Info("test finished",
			zap.String("test", test.Name),
			zap.String("status", string(result.Status)),
			zap.Int("failures", result.Failures),
		)
		metrics.RecordTest(result.Layer, string(result.Status))

		summary.Results = append(summary.Results, result)
		switch result.Status {
		case StatusPass:
			summary.Passed++
		case StatusFail:
			summary.Failed++
		default:
			summary.Errors++
		}
	}
	summary.Total = len(summary.Results)

	summary.Recording, summary.RecordingErr = r.record(ctx, summary.Results)
	return summary, nil
}

func (r *Runner) runTest(ctx context.Context, test catalog.Test, invocationID string) Result {
	started := r.now().UTC()
	result := Result{
		TestName:     test.Name,
		Layer:        string(test.Layer),
		Model:        test.Model,
		Column:       test.Column,
		TestType:     string(test.Kind),
		InvocationID: invocationID,
		ExecutedAt:   started.Truncate(time.Second),
	}
	finish := func() Result {
		result.Duration = r.now().UTC().Sub(started)
		result.ExecutionTime = result.Duration.Seconds()
		return result
	}
	fail := func(msg string) Result {
		result.Status = StatusError
		result.Failures = 0
		result.Error = msg
		return finish()
	}

	exec, err := r.runner.Await(ctx, engine.NewStatement(catalog.Render(test.SQL, r.database)))
	if err != nil {
		return fail(err.Error())
	}
	result.QueryID = exec.ID
	if exec.State != engine.StateSucceeded {
		reason := exec.Reason
		if reason == "" {
			reason = "query " + string(exec.State)
		}
		return fail(reason)
	}

	// Only the first page is inspected; counts above FetchLimit are capped.
	page, err := r.runner.Results(ctx, exec.ID, engine.ResultsRequest{MaxRows: r.fetchLimit})
	if err != nil {
		return fail(err.Error())
	}
	result.Failures = len(page.Rows)
	result.Truncated = page.NextToken != ""
	if result.Failures == 0 {
		result.Status = StatusPass
	} else {
		result.Status = StatusFail
	}
	return finish()
}
