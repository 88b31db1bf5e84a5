package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"eq-coach-service/internal/app"
	"eq-coach-service/internal/models"
	"eq-coach-service/internal/service/analysis"
	"eq-coach-service/internal/service/session"
)

type handlers struct {
	app      *app.Application
	sessions *session.Generator
}

func (h *handlers) liveness(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// readiness fails until a scorer is wired, or mock mode is on.
func (h *handlers) readiness(w http.ResponseWriter, _ *http.Request) {
	if !h.app.Ready() {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

// analyze normalizes the multipart or JSON body and runs the analysis.
func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	ctx := analysis.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	req, err := analysis.Normalize(r, h.app.Limits)
	if err != nil {
		mode := models.ParseMode(r.URL.Query().Get("mode"))
		writeError(w, h.app.Analysis.Reject(ctx, mode, err))
		return
	}

	result, err := h.app.Analysis.Analyze(ctx, req)
	if err != nil {
		writeError(w, analysis.AsError(err))
		return
	}
	writeJSON(w, http.StatusOK, models.Envelope{Success: true, Data: result})
}

// scenarios never fails: generation problems fall back to the bundled pool.
// With ?current=<label> it returns one replacement scenario from the pool.
func (h *handlers) scenarios(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := models.ParseMode(q.Get("mode"))

	if q.Has("current") {
		next := h.app.Picker.Next(mode, q.Get("current"))
		writeJSON(w, http.StatusOK, models.Envelope{Success: true, Data: []models.Scenario{next}})
		return
	}

	list, source := h.app.Scenarios.Scenarios(r.Context(), mode)
	w.Header().Set("X-Scenario-Source", source)
	writeJSON(w, http.StatusOK, models.Envelope{Success: true, Data: list})
}

func writeError(w http.ResponseWriter, aerr *analysis.Error) {
	writeJSON(w, aerr.Status, models.Envelope{Success: false, Error: aerr.Message, Code: aerr.Code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
