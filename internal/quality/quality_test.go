package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
	"github.com/nucleus/lakehouse/internal/engine/enginetest"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/poll"
)

// martsCatalog builds a catalog with n not_null tests on a marts model.
func martsCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	var b strings.Builder
	b.WriteString("layers:\n  - name: staging\n    models:\n      - {name: stg_raw_users, materialization: view, sql: SELECT 1}\n")
	b.WriteString("  - name: marts\n    models:\n      - {name: dim_users, materialization: iceberg, sql: SELECT 1}\n    tests:\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "      - {name: not_null_dim_users_col%02d, model: dim_users, column: col%02d, kind: not_null, sql: \"SELECT col%02d FROM {database}.dim_users WHERE col%02d IS NULL\"}\n", i, i, i, i)
	}
	c, err := catalog.Load(strings.NewReader(b.String()))
	require.NoError(t, err)
	return c
}

func newRunner(t *testing.T, fake *enginetest.Engine, cat *catalog.Catalog) *Runner {
	t.Helper()
	r, err := NewRunner(Config{
		Runner:       engine.NewRunner(fake, poll.Policy{MaxAttempts: 3}, nil),
		Catalog:      cat,
		Database:     "lake",
		ResultsTable: "elementary_test_results",
		FetchLimit:   10,
	})
	require.NoError(t, err)
	return r
}

func TestRunTestsMartsScenario(t *testing.T) {
	fake := enginetest.New().On("WHERE col07 IS NULL", enginetest.Response{
		Columns: []string{"col07"},
		Rows:    enginetest.Rows(3),
	})
	r := newRunner(t, fake, martsCatalog(t, 12))

	summary, err := r.RunTests(context.Background(), "marts")
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Total)
	assert.Equal(t, 11, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, RunTestsFailed, summary.Status())

	failed := summary.Results[6]
	assert.Equal(t, "not_null_dim_users_col07", failed.TestName)
	assert.Equal(t, StatusFail, failed.Status)
	assert.Equal(t, 3, failed.Failures)
	assert.False(t, failed.Truncated)

	assert.Equal(t, RecordingRecorded, summary.Recording.Status)
	assert.NoError(t, summary.RecordingErr)

	stmts := fake.Statements()
	require.Len(t, stmts, 13, "12 predicates and one insert")
	for i := 0; i < 12; i++ {
		assert.Contains(t, stmts[i].SQL, fmt.Sprintf(`"lake".dim_users WHERE col%02d IS NULL`, i+1), "tests run in table order")
	}
	insert := stmts[12]
	assert.True(t, strings.HasPrefix(insert.SQL, `INSERT INTO "lake".elementary_test_results`))
	assert.Len(t, insert.Params, 12*20)
	assert.Equal(t, engine.CountPlaceholders(insert.SQL), len(insert.Params))
}

func TestRunTestsClassification(t *testing.T) {
	fake := enginetest.New().
		On("col01 IS NULL", enginetest.Response{State: engine.StateFailed, Reason: "COLUMN_NOT_FOUND"}).
		On("col02 IS NULL", enginetest.Response{StartErr: errors.New("throttled")}).
		On("col03 IS NULL", enginetest.Response{ResultsErr: errors.New("results expired")}).
		On("col04 IS NULL", enginetest.Response{Rows: enginetest.Rows(25)}).
		On("col05 IS NULL", enginetest.Response{Pending: 50}).
		On("col06 IS NULL", enginetest.Response{State: engine.StateCancelled})
	r := newRunner(t, fake, martsCatalog(t, 7))

	summary, err := r.RunTests(context.Background(), "marts")
	require.NoError(t, err)

	tests := []struct {
		name     string
		status   TestStatus
		failures int
		errMsg   string
	}{
		{name: "engine failure", status: StatusError, errMsg: "COLUMN_NOT_FOUND"},
		{name: "submit failure", status: StatusError, errMsg: "throttled"},
		{name: "results failure", status: StatusError, errMsg: "results expired"},
		{name: "capped failures", status: StatusFail, failures: 10},
		{name: "timeout", status: StatusError, errMsg: errs.CodeEngineTimeout},
		{name: "cancelled", status: StatusError, errMsg: "CANCELLED"},
		{name: "pass", status: StatusPass},
	}
	require.Len(t, summary.Results, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summary.Results[i]
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.failures, got.Failures)
			if tt.errMsg != "" {
				assert.Contains(t, got.Error, tt.errMsg)
			} else {
				assert.Empty(t, got.Error)
			}
			assert.Equal(t, summary.InvocationID, got.InvocationID)
			assert.Equal(t, "marts", got.Layer)
		})
	}

	assert.True(t, summary.Results[3].Truncated)
	assert.Equal(t, 5, summary.Errors)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, RunError, summary.Status())
	assert.Equal(t, RecordingRecorded, summary.Recording.Status, "errored tests are still recorded")
}

func TestRunTestsDistinctInvocations(t *testing.T) {
	fake := enginetest.New()
	r := newRunner(t, fake, martsCatalog(t, 2))

	first, err := r.RunTests(context.Background(), "marts")
	require.NoError(t, err)
	second, err := r.RunTests(context.Background(), "marts")
	require.NoError(t, err)

	assert.NotEqual(t, first.InvocationID, second.InvocationID)
	for _, s := range []*Summary{first, second} {
		for _, res := range s.Results {
			assert.Equal(t, s.InvocationID, res.InvocationID)
		}
	}

	stmts := fake.Statements()
	require.Len(t, stmts, 6)
	assert.Contains(t, stmts[2].Params, first.InvocationID)
	assert.NotContains(t, stmts[2].Params, second.InvocationID)
	assert.Contains(t, stmts[5].Params, second.InvocationID)
}

func TestRunTestsUnknownLayerIssuesNoQuery(t *testing.T) {
	fake := enginetest.New()
	r := newRunner(t, fake, martsCatalog(t, 2))

	_, err := r.RunTests(context.Background(), "gold")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUnknownLayer))
	assert.Empty(t, fake.Statements())
}

func TestRunTestsAllLayers(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	fake := enginetest.New()
	r := newRunner(t, fake, cat)

	summary, err := r.RunTests(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 23, summary.Total)
	assert.Equal(t, "staging", summary.Results[0].Layer)
	assert.Equal(t, "marts", summary.Results[22].Layer)
	assert.Equal(t, RunSuccess, summary.Status())
}

func TestRunTestsRecordingFailure(t *testing.T) {
	fake := enginetest.New().On("INSERT INTO", enginetest.Response{
		State:  engine.StateFailed,
		Reason: "TABLE_NOT_FOUND: elementary_test_results",
	})
	r := newRunner(t, fake, martsCatalog(t, 3))

	summary, err := r.RunTests(context.Background(), "marts")
	require.NoError(t, err)

	assert.Equal(t, RunSuccess, summary.Status(), "test outcome is independent of recording")
	assert.Equal(t, RecordingError, summary.Recording.Status)
	assert.Contains(t, summary.Recording.Error, "TABLE_NOT_FOUND")
	require.Error(t, summary.RecordingErr)
	assert.Equal(t, errs.CodeRecordingFailed, errs.CodeOf(summary.RecordingErr))
}

func TestRunTestsNoResults(t *testing.T) {
	fake := enginetest.New()
	r := newRunner(t, fake, martsCatalog(t, 0))

	summary, err := r.RunTests(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, RecordingNoResults, summary.Recording.Status)
	assert.Empty(t, fake.Statements())
}

func TestInsertStatementBindsValues(t *testing.T) {
	r := newRunner(t, enginetest.New(), martsCatalog(t, 1))
	ids := 0
	r.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	stmt := r.insertStatement([]Result{{
		TestName:     "o'brien_test",
		Model:        "dim_users",
		Column:       "email",
		TestType:     "unique",
		Status:       StatusFail,
		Failures:     4,
		InvocationID: "inv-1",
		ExecutedAt:   at,
	}})

	assert.NotContains(t, stmt.SQL, "o'brien", "values never appear in the SQL text")
	assert.Equal(t, 28, len(resultColumns))
	assert.Equal(t, 20, engine.CountPlaceholders(stmt.SQL))
	assert.Equal(t, []any{
		"id-1", "id-2",
		"test.lakehouse.o'brien_test", "model.lakehouse.dim_users",
		"inv-1", at, at,
		"lake", "public", "dim_users", "email", "unique",
		"fail: 4 failures",
		"o'brien_test", "ERROR", "fail", 4,
		"o'brien_test", "o'brien_test", 4,
	}, stmt.Params)
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(Config{ResultsTable: "bad-name", FetchLimit: 10})
	assert.Error(t, err)
	_, err = NewRunner(Config{ResultsTable: "elementary_test_results"})
	assert.Error(t, err)
}
