package athena

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/lakehouse/internal/engine"
)

type fakeAPI struct {
	started    []*athena.StartQueryExecutionInput
	execution  *types.QueryExecution
	results    []*athena.GetQueryResultsOutput
	resultsIn  []*athena.GetQueryResultsInput
	startErr   error
	resultsErr error
}

func (f *fakeAPI) StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, in)
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("exec-1")}, nil
}

func (f *fakeAPI) GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	return &athena.GetQueryExecutionOutput{QueryExecution: f.execution}, nil
}

func (f *fakeAPI) GetQueryResults(ctx context.Context, in *athena.GetQueryResultsInput, _ ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	f.resultsIn = append(f.resultsIn, in)
	out := f.results[0]
	f.results = f.results[1:]
	return out, nil
}

func row(values ...string) types.Row {
	r := types.Row{}
	for _, v := range values {
		r.Data = append(r.Data, types.Datum{VarCharValue: aws.String(v)})
	}
	return r
}

func resultSet(columns []string, rows ...types.Row) *types.ResultSet {
	md := &types.ResultSetMetadata{}
	for _, c := range columns {
		md.ColumnInfo = append(md.ColumnInfo, types.ColumnInfo{Name: aws.String(c), Label: aws.String(c)})
	}
	return &types.ResultSet{ResultSetMetadata: md, Rows: rows}
}

func TestStartBindsExecutionParameters(t *testing.T) {
	api := &fakeAPI{}
	client := NewWithAPI(api, Config{Database: "lake"})

	id, err := client.Start(context.Background(), engine.NewStatement(
		"INSERT INTO t VALUES (?, ?, ?)", "o'brien", 3, nil,
	))
	require.NoError(t, err)
	assert.Equal(t, "exec-1", id)

	require.Len(t, api.started, 1)
	in := api.started[0]
	assert.Equal(t, "lake", aws.ToString(in.QueryExecutionContext.Database))
	assert.Equal(t, "primary", aws.ToString(in.WorkGroup))
	assert.Equal(t, []string{"'o''brien'", "3", "NULL"}, in.ExecutionParameters)
}

func TestStartRejectsPlaceholderMismatch(t *testing.T) {
	api := &fakeAPI{}
	client := NewWithAPI(api, Config{Database: "lake"})

	_, err := client.Start(context.Background(), engine.NewStatement("SELECT ?", "a", "b"))
	require.Error(t, err)
	assert.Empty(t, api.started)
}

func TestStartWithoutParams(t *testing.T) {
	api := &fakeAPI{}
	client := NewWithAPI(api, Config{Database: "lake", Workgroup: "etl"})

	_, err := client.Start(context.Background(), engine.NewStatement("DROP VIEW IF EXISTS v"))
	require.NoError(t, err)
	assert.Nil(t, api.started[0].ExecutionParameters)
	assert.Equal(t, "etl", aws.ToString(api.started[0].WorkGroup))

	api.startErr = errors.New("throttled")
	_, err = client.Start(context.Background(), engine.NewStatement("SELECT 1"))
	assert.EqualError(t, err, "throttled")
}

func TestStatusMapsStateAndStats(t *testing.T) {
	api := &fakeAPI{execution: &types.QueryExecution{
		Status: &types.QueryExecutionStatus{
			State:             types.QueryExecutionStateFailed,
			StateChangeReason: aws.String("TABLE_NOT_FOUND"),
		},
		Statistics: &types.QueryExecutionStatistics{
			EngineExecutionTimeInMillis: aws.Int64(1500),
			DataScannedInBytes:          aws.Int64(2048),
		},
	}}
	client := NewWithAPI(api, Config{Database: "lake"})

	status, err := client.Status(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StateFailed, status.State)
	assert.Equal(t, "TABLE_NOT_FOUND", status.Reason)
	assert.Equal(t, 1500*time.Millisecond, status.Stats.EngineExecutionTime)
	assert.EqualValues(t, 2048, status.Stats.DataScannedBytes)
}

func TestResultsStripsHeaderOnFirstPage(t *testing.T) {
	cols := []string{"event_id"}
	api := &fakeAPI{results: []*athena.GetQueryResultsOutput{
		{ResultSet: resultSet(cols, row("event_id"), row("evt-1"), row("evt-2")), NextToken: aws.String("tok")},
		{ResultSet: resultSet(cols, row("event_id"), row("evt-3"))},
	}}
	client := NewWithAPI(api, Config{Database: "lake"})

	page, err := client.Results(context.Background(), "exec-1", engine.ResultsRequest{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"evt-1"}, {"evt-2"}}, page.Rows)
	assert.Equal(t, "tok", page.NextToken)
	assert.EqualValues(t, 3, aws.ToInt32(api.resultsIn[0].MaxResults))

	// a later page whose value happens to equal the column name is data
	page, err = client.Results(context.Background(), "exec-1", engine.ResultsRequest{MaxRows: 2, NextToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"event_id"}, {"evt-3"}}, page.Rows)
	assert.EqualValues(t, 2, aws.ToInt32(api.resultsIn[1].MaxResults))
	assert.Equal(t, "tok", aws.ToString(api.resultsIn[1].NextToken))
}

func TestResultsCapsPageSize(t *testing.T) {
	api := &fakeAPI{results: []*athena.GetQueryResultsOutput{{ResultSet: resultSet(nil)}}}
	client := NewWithAPI(api, Config{Database: "lake"})

	page, err := client.Results(context.Background(), "exec-1", engine.ResultsRequest{MaxRows: 5000})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.EqualValues(t, maxResultsPerPage, aws.ToInt32(api.resultsIn[0].MaxResults))
}

func TestDialect(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "DROP VIEW IF EXISTS stg_raw_users", d.DropView("stg_raw_users"))
	assert.Equal(t, "DROP TABLE IF EXISTS dim_users", d.DropTable("dim_users"))
	assert.True(t, strings.HasPrefix(d.CreateView("v", "SELECT 1"), "CREATE VIEW v AS\nSELECT 1"))

	ctas := d.CreateTableAs("dim_users", "SELECT 1", "s3://lake/curated/")
	assert.Contains(t, ctas, "table_type = 'ICEBERG'")
	assert.Contains(t, ctas, "location = 's3://lake/curated/dim_users/'")
	assert.Contains(t, ctas, "format = 'PARQUET'")
	assert.True(t, strings.HasSuffix(ctas, ") AS\nSELECT 1\n"))

	assert.NotContains(t, d.CreateTableAs("t", "SELECT 1", ""), "ICEBERG")
}

func TestValidateLocation(t *testing.T) {
	d := Dialect{}
	assert.NoError(t, d.ValidateLocation("s3://lake/curated"))
	assert.Error(t, d.ValidateLocation("s3://"))
	assert.Error(t, d.ValidateLocation("file:///tmp/lake"))
	assert.Error(t, d.ValidateLocation("s3://lake/cur'ated"))
	assert.Error(t, d.ValidateLocation("s3://lake/\ncurated"))
}
