// Package enginetest provides a scripted in-memory query engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nucleus/lakehouse/internal/engine"
)

// Response scripts how the engine answers one statement.
type Response struct {
	// State is the terminal state; SUCCEEDED when empty.
	State  engine.State
	Reason string

	Columns []string
	Rows    [][]string

	// Pending is the number of RUNNING polls before the terminal state.
	Pending int

	StartErr   error
	StatusErr  error
	ResultsErr error
}

type rule struct {
	match    string
	response Response
}

type execution struct {
	stmt     engine.Statement
	response Response
	polls    int
}

// Engine is a fake engine.Client. Rules are matched against the statement
// SQL by substring in the order they were added; unmatched statements
// succeed with no rows.
type Engine struct {
	mu         sync.Mutex
	rules      []rule
	executions map[string]*execution
	statements []engine.Statement
	seq        int
}

var _ engine.Client = (*Engine)(nil)

// New returns an engine with no rules.
func New() *Engine {
	return &Engine{executions: make(map[string]*execution)}
}

// On scripts the response for statements whose SQL contains substr.
func (e *Engine) On(substr string, resp Response) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{match: substr, response: resp})
	return e
}

func (e *Engine) Start(ctx context.Context, stmt engine.Statement) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.statements = append(e.statements, stmt)
	resp := Response{}
	for _, r := range e.rules {
		if strings.Contains(stmt.SQL, r.match) {
			resp = r.response
			break
		}
	}
	if resp.StartErr != nil {
		return "", resp.StartErr
	}
	if resp.State == "" {
		resp.State = engine.StateSucceeded
	}

	e.seq++
	id := fmt.Sprintf("q-%03d", e.seq)
	e.executions[id] = &execution{stmt: stmt, response: resp}
	return id, nil
}

func (e *Engine) Status(ctx context.Context, executionID string) (*engine.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exec, ok := e.executions[executionID]
	if !ok {
		return nil, fmt.Errorf("unknown execution %s", executionID)
	}
	if exec.response.StatusErr != nil {
		return nil, exec.response.StatusErr
	}
	exec.polls++
	if exec.polls <= exec.response.Pending {
		return &engine.Status{State: engine.StateRunning}, nil
	}
	return &engine.Status{State: exec.response.State, Reason: exec.response.Reason}, nil
}

func (e *Engine) Results(ctx context.Context, executionID string, req engine.ResultsRequest) (*engine.ResultPage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exec, ok := e.executions[executionID]
	if !ok {
		return nil, fmt.Errorf("unknown execution %s", executionID)
	}
	if exec.response.ResultsErr != nil {
		return nil, exec.response.ResultsErr
	}

	offset := 0
	if req.NextToken != "" {
		n, err := strconv.Atoi(req.NextToken)
		if err != nil {
			return nil, fmt.Errorf("bad token %q", req.NextToken)
		}
		offset = n
	}
	rows := exec.response.Rows
	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if req.MaxRows > 0 && offset+req.MaxRows < end {
		end = offset + req.MaxRows
	}
	page := &engine.ResultPage{
		Columns: exec.response.Columns,
		Rows:    rows[offset:end],
	}
	if end < len(rows) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

// Statements returns every statement started so far, in order.
func (e *Engine) Statements() []engine.Statement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Statement(nil), e.statements...)
}

// SQL returns the SQL text of every statement started so far.
func (e *Engine) SQL() []string {
	stmts := e.Statements()
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out
}

// Rows builds n single-column rows.
func Rows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i + 1)}
	}
	return rows
}
