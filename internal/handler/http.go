package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/errs"
)

// Routes exposes the handler over HTTP.
//
//	POST /invoke   body is an Event, response is a Response
//	GET  /report   renders the dashboard as text/html
//	GET  /healthz  liveness
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/invoke", h.serveInvoke)
	r.Get("/report", h.serveReport)
	return r
}

func (h *Handler) serveInvoke(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			resp := failure(ev.Action, ev.Layer, errs.New(errs.CodeInvalidInput, false, "invalid event: %v", err))
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}
	}
	resp := h.Handle(r.Context(), ev)
	writeJSON(w, resp.StatusCode, resp)
}

func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request) {
	if h.Reports == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reports are not served by this deployment"})
		return
	}
	html, err := h.Reports.Generate(r.Context())
	if err != nil {
		h.logger().Error("report generation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":      err.Error(),
			"error_code": errs.CodeOf(err),
		})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
