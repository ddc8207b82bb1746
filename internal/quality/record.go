package quality

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
	"github.com/nucleus/lakehouse/internal/errs"
)

const (
	elementarySchema   = "public"
	elementarySeverity = "ERROR"
)

// resultColumns is the Elementary test results layout, in insert order.
var resultColumns = []string{
	"id",
	"data_issue_id",
	"test_execution_id",
	"test_unique_id",
	"model_unique_id",
	"invocation_id",
	"detected_at",
	"created_at",
	"database_name",
	"schema_name",
	"table_name",
	"column_name",
	"test_type",
	"test_sub_type",
	"test_results_description",
	"owners",
	"tags",
	"test_results_query",
	"other",
	"test_name",
	"test_params",
	"severity",
	"status",
	"failures",
	"test_short_name",
	"test_alias",
	"result_rows",
	"failed_row_count",
}

// nullColumns are always written as NULL.
var nullColumns = map[string]bool{
	"data_issue_id":      true,
	"test_sub_type":      true,
	"owners":             true,
	"tags":               true,
	"test_results_query": true,
	"other":              true,
	"test_params":        true,
	"result_rows":        true,
}

// rowPlaceholder is the VALUES tuple for one result row.
var rowPlaceholder = func() string {
	parts := make([]string, len(resultColumns))
	for i, col := range resultColumns {
		if nullColumns[col] {
			parts[i] = "NULL"
		} else {
			parts[i] = "?"
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}()

// insertStatement builds one multi-row INSERT; every value is a parameter.
func (r *Runner) insertStatement(results []Result) engine.Statement {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s.%s (\n    %s\n)\nVALUES ",
		catalog.Render(catalog.DatabaseToken, r.database),
		r.resultsTable,
		strings.Join(resultColumns, ",\n    "),
	)

	params := make([]any, 0, len(results)*(len(resultColumns)-len(nullColumns)))
	for i, res := range results {
		if i > 0 {
			b.WriteString(",\n       ")
		}
		b.WriteString(rowPlaceholder)
		params = append(params,
			r.newID(),
			r.newID(),
			fmt.Sprintf("test.%s.%s", r.project, res.TestName),
			fmt.Sprintf("model.%s.%s", r.project, res.Model),
			res.InvocationID,
			res.ExecutedAt,
			res.ExecutedAt,
			r.database,
			elementarySchema,
			res.Model,
			res.Column,
			res.TestType,
			fmt.Sprintf("%s: %d failures", res.Status, res.Failures),
			res.TestName,
			elementarySeverity,
			string(res.Status),
			res.Failures,
			res.TestName,
			res.TestName,
			res.Failures,
		)
	}
	return engine.Statement{SQL: b.String(), Params: params}
}

func (r *Runner) record(ctx context.Context, results []Result) (Recording, error) {
	if len(results) == 0 {
		return Recording{Status: RecordingNoResults}, nil
	}

	exec, err := r.runner.Execute(ctx, r.insertStatement(results))
	if err != nil {
		r.logger.Error("recording test results failed", zap.Error(err))
		return Recording{Status: RecordingError, Error: err.Error()},
			errs.Wrap(errs.CodeRecordingFailed, errs.IsRetryable(err), fmt.Errorf("record test results: %w", err))
	}
	r.logger.Info("test results recorded",
		zap.String("execution_id", exec.ID),
		zap.Int("rows", len(results)),
	)
	return Recording{Status: RecordingRecorded, QueryID: exec.ID}, nil
}
