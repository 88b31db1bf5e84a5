// Package observability provides the metrics server, gRPC interceptors and
// HTTP instrumentation.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"eq-coach-service/internal/observability/logging"
)

// ReadyFunc reports whether the service can serve analysis requests.
type ReadyFunc func() bool

// Server exposes /metrics, /healthz and /readyz on a port separate from the API.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer creates the observability server. A nil ready always reports ready.
func NewServer(addr string, ready ReadyFunc) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Handler(ready),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logging.WithComponent("observability"),
	}
}

// Handler returns the probe and metrics mux.
func Handler(ready ReadyFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		probe(w, true, "ok")
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			probe(w, false, "not ready")
			return
		}
		probe(w, true, "ready")
	})
	return mux
}

func probe(w http.ResponseWriter, ok bool, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Write([]byte(body))
}

// Start serves in the background. Listen errors are logged, not returned.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("Observability server started")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Observability server failed")
		}
	}()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
