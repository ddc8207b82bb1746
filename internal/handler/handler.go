// Package handler is the event-driven entrypoint: it maps an invocation
// event to a transform, test or report run and shapes the response.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/objectstore"
	"github.com/nucleus/lakehouse/internal/orchestration"
	"github.com/nucleus/lakehouse/internal/quality"
	"github.com/nucleus/lakehouse/internal/transform"
)

// Actions understood by the handler.
const (
	ActionRunLayer       = "run_layer"
	ActionRunTests       = "run_tests"
	ActionGenerateReport = "generate_report"
)

// Status values reported in the response body besides quality.RunStatus.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// ReportKey is where generate_report publishes the dashboard.
const ReportKey = "reports/index.html"

// Event is the invocation payload.
type Event struct {
	Action          string `json:"action,omitempty"`
	Layer           string `json:"layer,omitempty"`
	StorageLocation string `json:"storage_location,omitempty"`
}

// UnmarshalJSON accepts s3_location as an alias of storage_location.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action          string `json:"action"`
		Layer           string `json:"layer"`
		StorageLocation string `json:"storage_location"`
		S3Location      string `json:"s3_location"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Action = raw.Action
	e.Layer = raw.Layer
	e.StorageLocation = raw.StorageLocation
	if e.StorageLocation == "" {
		e.StorageLocation = raw.S3Location
	}
	return nil
}

// Counts is the pass/fail tally of a test run.
type Counts struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// Body is the response payload.
type Body struct {
	Action       string                      `json:"action"`
	Layer        string                      `json:"layer,omitempty"`
	Status       string                      `json:"status"`
	Results      []transform.ExecutionResult `json:"results,omitempty"`
	Summary      *Counts                     `json:"summary,omitempty"`
	InvocationID string                      `json:"invocation_id,omitempty"`
	Recording    *quality.Recording          `json:"recording,omitempty"`
	Tests        []quality.Result            `json:"tests,omitempty"`
	ReportURI    string                      `json:"report_uri,omitempty"`
	HTML         string                      `json:"html,omitempty"`
	Error        string                      `json:"error,omitempty"`
	ErrorCode    string                      `json:"error_code,omitempty"`
}

// Response mirrors the function-invocation response shape.
type Response struct {
	StatusCode int  `json:"statusCode"`
	Body       Body `json:"body"`
}

// ReportGenerator renders the dashboard. Satisfied by *report.Renderer.
type ReportGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// Handler dispatches events. Any dependency may be nil when the deployment
// does not serve the matching action.
type Handler struct {
	Transform orchestration.LayerRunner
	Quality   orchestration.TestRunner
	Reports   ReportGenerator

	// Store and Bucket publish generated reports. Without them the HTML is
	// returned inline.
	Store  objectstore.Store
	Bucket string

	// DefaultAction applies when an event names no action.
	DefaultAction string
	Logger        *zap.Logger
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Handle runs one event. It never returns a Go error: failures are carried
// in a 500 response.
func (h *Handler) Handle(ctx context.Context, ev Event) Response {
	action := ev.Action
	if action == "" {
		action = h.DefaultAction
	}
	started := time.Now()
	h.logger().Info("invocation received",
		zap.String("action", action),
		zap.String("layer", ev.Layer),
		zap.String("storage_location", ev.StorageLocation),
	)

	var resp Response
	var err error
	switch action {
	case ActionRunLayer:
		resp, err = h.runLayer(ctx, ev)
	case ActionRunTests:
		resp, err = h.runTests(ctx, ev)
	case ActionGenerateReport:
		resp, err = h.generateReport(ctx)
	default:
		err = errs.New(errs.CodeInvalidInput, false, "unknown action: %q", action)
	}
	if err != nil {
		h.logger().Error("invocation failed",
			zap.String("action", action),
			zap.String("error_code", errs.CodeOf(err)),
			zap.Error(err),
		)
		return failure(action, ev.Layer, err)
	}
	resp.Body.Action = action
	h.logger().Info("invocation finished",
		zap.String("action", action),
		zap.Int("status_code", resp.StatusCode),
		zap.String("status", resp.Body.Status),
		zap.Duration("elapsed", time.Since(started)),
	)
	return resp
}

// Invoke adapts Handle to the Lambda handler signature.
func (h *Handler) Invoke(ctx context.Context, ev Event) (Response, error) {
	return h.Handle(ctx, ev), nil
}

func (h *Handler) runLayer(ctx context.Context, ev Event) (Response, error) {
	if h.Transform == nil {
		return Response{}, errs.New(errs.CodeInvalidInput, false, "%s is not served by this deployment", ActionRunLayer)
	}
	if ev.Layer == "" {
		return Response{}, errs.New(errs.CodeInvalidInput, false, "layer is required for %s", ActionRunLayer)
	}
	results, err := h.Transform.RunLayer(ctx, ev.Layer, ev.StorageLocation)
	if err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode: http.StatusOK,
		Body: Body{
			Layer:   ev.Layer,
			Status:  StatusSuccess,
			Results: results,
		},
	}, nil
}

func (h *Handler) runTests(ctx context.Context, ev Event) (Response, error) {
	if h.Quality == nil {
		return Response{}, errs.New(errs.CodeInvalidInput, false, "%s is not served by this deployment", ActionRunTests)
	}
	summary, err := h.Quality.RunTests(ctx, ev.Layer)
	if err != nil {
		return Response{}, err
	}

	status := summary.Status()
	code := http.StatusOK
	if status == quality.RunError {
		code = http.StatusInternalServerError
	}
	recording := summary.Recording
	body := Body{
		Layer:  ev.Layer,
		Status: string(status),
		Summary: &Counts{
			Total:  summary.Total,
			Passed: summary.Passed,
			Failed: summary.Failed,
			Errors: summary.Errors,
		},
		InvocationID: summary.InvocationID,
		Recording:    &recording,
		Tests:        summary.Results,
	}
	if summary.RecordingErr != nil {
		code = http.StatusInternalServerError
		body.Error = summary.RecordingErr.Error()
		body.ErrorCode = errs.CodeOf(summary.RecordingErr)
	}
	return Response{StatusCode: code, Body: body}, nil
}

func (h *Handler) generateReport(ctx context.Context) (Response, error) {
	if h.Reports == nil {
		return Response{}, errs.New(errs.CodeInvalidInput, false, "%s is not served by this deployment", ActionGenerateReport)
	}
	html, err := h.Reports.Generate(ctx)
	if err != nil {
		return Response{}, err
	}
	body := Body{Status: StatusSuccess}
	if h.Store != nil && h.Bucket != "" {
		if err := h.Store.PutObject(ctx, h.Bucket, ReportKey, []byte(html), "text/html; charset=utf-8"); err != nil {
			return Response{}, err
		}
		body.ReportURI = objectstore.URI(h.Bucket, ReportKey)
	} else {
		body.HTML = html
	}
	return Response{StatusCode: http.StatusOK, Body: body}, nil
}

func failure(action, layer string, err error) Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body: Body{
			Action:    action,
			Layer:     layer,
			Status:    StatusFailed,
			Error:     fmt.Sprint(err),
			ErrorCode: errs.CodeOf(err),
		},
	}
}
