// Package athena runs statements on Amazon Athena against a Glue database.
package athena

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/nucleus/lakehouse/internal/engine"
)

// maxResultsPerPage is the GetQueryResults page size limit.
const maxResultsPerPage = 1000

// API is the subset of the Athena client used here.
type API interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, in *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// Config holds Athena connection settings.
type Config struct {
	Region    string
	Database  string
	Workgroup string
}

// Client implements engine.Client on Athena.
type Client struct {
	api       API
	database  string
	workgroup string
}

var _ engine.Client = (*Client)(nil)

// New loads AWS credentials from the default chain and builds a client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(athena.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI builds a client around an existing Athena API.
func NewWithAPI(api API, cfg Config) *Client {
	workgroup := cfg.Workgroup
	if workgroup == "" {
		workgroup = "primary"
	}
	return &Client{api: api, database: cfg.Database, workgroup: workgroup}
}

// Start submits the statement. Parameters are bound as Athena execution
// parameters, each rendered as a SQL literal.
func (c *Client) Start(ctx context.Context, stmt engine.Statement) (string, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(stmt.SQL),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(c.database)},
		WorkGroup:             aws.String(c.workgroup),
	}
	if len(stmt.Params) > 0 {
		if n := engine.CountPlaceholders(stmt.SQL); n != len(stmt.Params) {
			return "", fmt.Errorf("statement has %d placeholders but %d parameters", n, len(stmt.Params))
		}
		params, err := engine.Literals(stmt.Params)
		if err != nil {
			return "", err
		}
		in.ExecutionParameters = params
	}

	out, err := c.api.StartQueryExecution(ctx, in)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.QueryExecutionId), nil
}

func (c *Client) Status(ctx context.Context, executionID string) (*engine.Status, error) {
	out, err := c.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return nil, err
	}
	qe := out.QueryExecution
	if qe == nil || qe.Status == nil {
		return nil, fmt.Errorf("execution %s has no status", executionID)
	}

	status := &engine.Status{
		State:  mapState(qe.Status.State),
		Reason: aws.ToString(qe.Status.StateChangeReason),
	}
	if st := qe.Statistics; st != nil {
		status.Stats = engine.Stats{
			EngineExecutionTime: millis(st.EngineExecutionTimeInMillis),
			TotalExecutionTime:  millis(st.TotalExecutionTimeInMillis),
			DataScannedBytes:    aws.ToInt64(st.DataScannedInBytes),
		}
	}
	return status, nil
}

// Results reads one page. Athena prepends a header row to the first page of
// SELECT results; it is removed so MaxRows counts data rows only.
func (c *Client) Results(ctx context.Context, executionID string, req engine.ResultsRequest) (*engine.ResultPage, error) {
	first := req.NextToken == ""
	in := &athena.GetQueryResultsInput{QueryExecutionId: aws.String(executionID)}
	if req.MaxRows > 0 {
		n := req.MaxRows
		if first {
			n++
		}
		if n > maxResultsPerPage {
			n = maxResultsPerPage
		}
		in.MaxResults = aws.Int32(int32(n))
	}
	if !first {
		in.NextToken = aws.String(req.NextToken)
	}

	out, err := c.api.GetQueryResults(ctx, in)
	if err != nil {
		return nil, err
	}

	page := &engine.ResultPage{NextToken: aws.ToString(out.NextToken)}
	if out.ResultSet == nil {
		return page, nil
	}
	if md := out.ResultSet.ResultSetMetadata; md != nil {
		for _, col := range md.ColumnInfo {
			name := aws.ToString(col.Label)
			if name == "" {
				name = aws.ToString(col.Name)
			}
			page.Columns = append(page.Columns, name)
		}
	}

	rows := out.ResultSet.Rows
	if first && len(rows) > 0 && isHeader(rows[0], page.Columns) {
		rows = rows[1:]
	}
	for _, row := range rows {
		values := make([]string, len(row.Data))
		for i, d := range row.Data {
			values[i] = aws.ToString(d.VarCharValue)
		}
		page.Rows = append(page.Rows, values)
	}
	return page, nil
}

func isHeader(row types.Row, columns []string) bool {
	if len(columns) == 0 || len(row.Data) != len(columns) {
		return false
	}
	for i, d := range row.Data {
		if aws.ToString(d.VarCharValue) != columns[i] {
			return false
		}
	}
	return true
}

func mapState(s types.QueryExecutionState) engine.State {
	switch s {
	case types.QueryExecutionStateQueued:
		return engine.StateQueued
	case types.QueryExecutionStateRunning:
		return engine.StateRunning
	case types.QueryExecutionStateSucceeded:
		return engine.StateSucceeded
	case types.QueryExecutionStateFailed:
		return engine.StateFailed
	case types.QueryExecutionStateCancelled:
		return engine.StateCancelled
	default:
		return engine.State(s)
	}
}

func millis(v *int64) time.Duration {
	return time.Duration(aws.ToInt64(v)) * time.Millisecond
}
