package http

import (
	"net/http"

	"eq-coach-service/internal/app"
	"eq-coach-service/internal/observability"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/service/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the coaching API, the live practice socket and the probes.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMetrics(metrics.DefaultMetrics))

	h := &handlers{app: application, sessions: session.New()}

	r.Get("/v1/liveness", h.liveness)
	r.Get("/v1/readiness", h.readiness)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", h.analyze)
		r.Get("/scenarios", h.scenarios)
		r.Get("/practice/live", h.live)
	})

	// Legacy paths used by the first web client.
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.analyze)
		r.Get("/scenarios", h.scenarios)
	})

	return r
}
