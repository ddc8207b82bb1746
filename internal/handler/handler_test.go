package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
	"github.com/nucleus/lakehouse/internal/engine/athena"
	"github.com/nucleus/lakehouse/internal/engine/enginetest"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/objectstore"
	"github.com/nucleus/lakehouse/internal/poll"
	"github.com/nucleus/lakehouse/internal/quality"
	"github.com/nucleus/lakehouse/internal/transform"
)

type fakeTests struct {
	summary *quality.Summary
	err     error
	layer   string
}

func (f *fakeTests) RunTests(_ context.Context, layer string) (*quality.Summary, error) {
	f.layer = layer
	return f.summary, f.err
}

type fakeReports struct {
	html string
	err  error
}

func (f fakeReports) Generate(context.Context) (string, error) { return f.html, f.err }

func newTransform(t *testing.T, fake *enginetest.Engine) *transform.Executor {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return transform.NewExecutor(transform.Config{
		Runner:          engine.NewRunner(fake, poll.Policy{MaxAttempts: 3}, nil),
		Dialect:         athena.Dialect{},
		Catalog:         cat,
		Database:        "lakehouse_db",
		DefaultLocation: "s3://lake/curated",
	})
}

func TestEventAcceptsS3LocationAlias(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"action":"run_layer","layer":"marts","s3_location":"s3://b/curated"}`), &ev))
	assert.Equal(t, Event{Action: "run_layer", Layer: "marts", StorageLocation: "s3://b/curated"}, ev)

	require.NoError(t, json.Unmarshal([]byte(`{"storage_location":"s3://a","s3_location":"s3://b"}`), &ev))
	assert.Equal(t, "s3://a", ev.StorageLocation)
}

func TestRunLayerDefaultAction(t *testing.T) {
	fake := enginetest.New()
	h := &Handler{Transform: newTransform(t, fake), DefaultAction: ActionRunLayer}

	resp := h.Handle(context.Background(), Event{Layer: "staging"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ActionRunLayer, resp.Body.Action)
	assert.Equal(t, StatusSuccess, resp.Body.Status)
	require.Len(t, resp.Body.Results, 2)
	for _, r := range resp.Body.Results {
		assert.Equal(t, engine.StateSucceeded, r.State)
	}
	assert.Len(t, fake.SQL(), 4)
}

func TestRunLayerFailures(t *testing.T) {
	fake := enginetest.New()
	h := &Handler{Transform: newTransform(t, fake), DefaultAction: ActionRunLayer}

	resp := h.Handle(context.Background(), Event{})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, errs.CodeInvalidInput, resp.Body.ErrorCode)

	resp = h.Handle(context.Background(), Event{Layer: "gold"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, StatusFailed, resp.Body.Status)
	assert.Equal(t, errs.CodeUnknownLayer, resp.Body.ErrorCode)
	assert.Empty(t, fake.SQL(), "unknown layer must not reach the engine")

	fake.On("CREATE VIEW stg_raw_events", enginetest.Response{State: engine.StateFailed, Reason: "SYNTAX_ERROR"})
	resp = h.Handle(context.Background(), Event{Layer: "staging"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, errs.CodeEngineExecutionFailed, resp.Body.ErrorCode)
	assert.Contains(t, resp.Body.Error, "stg_raw_events")
}

func TestRunTestsStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		summary    *quality.Summary
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{
			name:       "all pass",
			summary:    &quality.Summary{InvocationID: "inv", Total: 2, Passed: 2, Recording: quality.Recording{Status: quality.RecordingRecorded}},
			wantCode:   http.StatusOK,
			wantStatus: "SUCCESS",
		},
		{
			name:       "some failed",
			summary:    &quality.Summary{InvocationID: "inv", Total: 12, Passed: 11, Failed: 1, Recording: quality.Recording{Status: quality.RecordingRecorded}},
			wantCode:   http.StatusOK,
			wantStatus: "TESTS_FAILED",
		},
		{
			name:       "errored",
			summary:    &quality.Summary{InvocationID: "inv", Total: 2, Passed: 1, Errors: 1, Recording: quality.Recording{Status: quality.RecordingRecorded}},
			wantCode:   http.StatusInternalServerError,
			wantStatus: "ERROR",
		},
		{
			name: "recording failed",
			summary: &quality.Summary{
				InvocationID: "inv", Total: 1, Passed: 1,
				Recording:    quality.Recording{Status: quality.RecordingError, Error: "insert failed"},
				RecordingErr: errs.New(errs.CodeRecordingFailed, true, "insert failed"),
			},
			wantCode:   http.StatusInternalServerError,
			wantStatus: "SUCCESS",
			wantError:  errs.CodeRecordingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeTests{summary: tt.summary}
			h := &Handler{Quality: runner, DefaultAction: ActionRunTests}

			resp := h.Handle(context.Background(), Event{Layer: "marts"})
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantStatus, resp.Body.Status)
			assert.Equal(t, tt.wantError, resp.Body.ErrorCode)
			assert.Equal(t, "marts", runner.layer)
			require.NotNil(t, resp.Body.Summary)
			assert.Equal(t, tt.summary.Total, resp.Body.Summary.Total)
			assert.Equal(t, "inv", resp.Body.InvocationID)
			require.NotNil(t, resp.Body.Recording)
		})
	}
}

func TestUnknownAction(t *testing.T) {
	h := &Handler{DefaultAction: ActionRunTests}
	resp := h.Handle(context.Background(), Event{Action: "deploy"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, errs.CodeInvalidInput, resp.Body.ErrorCode)
	assert.Equal(t, "deploy", resp.Body.Action)
}

func TestGenerateReport(t *testing.T) {
	ctx := context.Background()

	inline := &Handler{Reports: fakeReports{html: "<html>ok</html>"}}
	resp := inline.Handle(ctx, Event{Action: ActionGenerateReport})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", resp.Body.HTML)

	store := objectstore.NewLocalStore(t.TempDir())
	published := &Handler{Reports: fakeReports{html: "<html>ok</html>"}, Store: store, Bucket: "lake"}
	resp = published.Handle(ctx, Event{Action: ActionGenerateReport})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s3://lake/reports/index.html", resp.Body.ReportURI)
	assert.Empty(t, resp.Body.HTML)
	data, err := store.GetObject(ctx, "lake", ReportKey)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(data))

	broken := &Handler{Reports: fakeReports{err: errs.New(errs.CodeEngineTimeout, true, "slow")}}
	resp = broken.Handle(ctx, Event{Action: ActionGenerateReport})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, errs.CodeEngineTimeout, resp.Body.ErrorCode)
}

func TestHTTPInvoke(t *testing.T) {
	runner := &fakeTests{summary: &quality.Summary{InvocationID: "inv", Total: 3, Passed: 3}}
	h := &Handler{Quality: runner, DefaultAction: ActionRunTests}
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/invoke", "application/json", strings.NewReader(`{"layer":"staging"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ActionRunTests, resp.Body.Action)
	assert.Equal(t, "SUCCESS", resp.Body.Status)

	bad, err := http.Post(srv.URL+"/invoke", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHTTPReportAndHealth(t *testing.T) {
	h := &Handler{Reports: fakeReports{html: "<html>dash</html>"}}
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/report")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	failing := &Handler{Reports: fakeReports{err: errors.New("boom")}}
	rec := httptest.NewRecorder()
	failing.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
