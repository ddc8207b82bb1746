// Package engine abstracts the SQL query engine the pipeline submits work to.
//
// Engines are asynchronous: a statement is started, its status is polled
// until it reaches a terminal state, and the result rows are read in pages.
// Runner layers the bounded polling loop on top of a Client.
package engine

import (
	"context"
	"time"
)

// State is the lifecycle state of a query execution.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// IsTerminal reports whether the execution can no longer change state.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Statement is a SQL text with positional `?` placeholders and their values.
// Supported parameter types are string, int, int64, float64, bool, time.Time
// and nil.
type Statement struct {
	SQL    string
	Params []any
}

// NewStatement builds a statement from SQL and its parameters.
func NewStatement(sql string, params ...any) Statement {
	return Statement{SQL: sql, Params: params}
}

// Stats are the engine-reported execution statistics.
type Stats struct {
	EngineExecutionTime time.Duration `json:"engine_execution_time"`
	TotalExecutionTime  time.Duration `json:"total_execution_time"`
	DataScannedBytes    int64         `json:"data_scanned_bytes"`
}

// Status is a point-in-time view of an execution.
type Status struct {
	State  State
	Reason string
	Stats  Stats
}

// ResultsRequest selects one page of results.
type ResultsRequest struct {
	MaxRows   int
	NextToken string
}

// ResultPage is one page of result rows. Engines strip any header row before
// returning it.
type ResultPage struct {
	Columns   []string
	Rows      [][]string
	NextToken string
}

// Client is the asynchronous query engine surface.
type Client interface {
	Start(ctx context.Context, stmt Statement) (string, error)
	Status(ctx context.Context, executionID string) (*Status, error)
	Results(ctx context.Context, executionID string, req ResultsRequest) (*ResultPage, error)
}

// Dialect renders the DDL an engine understands. Names are validated
// identifiers and are emitted unquoted.
type Dialect interface {
	DropView(name string) string
	DropTable(name string) string
	CreateView(name, body string) string
	CreateTableAs(name, body, location string) string
	// ValidateLocation rejects storage locations the engine cannot write to.
	ValidateLocation(location string) error
}
