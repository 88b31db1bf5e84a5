// Package grpcapi exposes the gRPC health service used by container probes.
package grpcapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"eq-coach-service/internal/observability/logging"
)

// AnalysisService is the health service name that follows analysis readiness.
// The empty name reports process liveness.
const AnalysisService = "eq.coach.AnalysisService"

// Health keeps the gRPC health statuses in line with service readiness.
type Health struct {
	server *health.Server
	ready  func() bool
	logger zerolog.Logger
}

// Register adds the health service to g. ready reports whether analysis
// requests can be served; nil means always ready.
func Register(g *grpc.Server, ready func() bool) *Health {
	h := &Health{
		server: health.NewServer(),
		ready:  ready,
		logger: logging.WithComponent("grpc-health"),
	}
	grpc_health_v1.RegisterHealthServer(g, h.server)
	h.server.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.Refresh()
	return h
}

// Refresh re-evaluates readiness and updates the analysis service status.
func (h *Health) Refresh() {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if h.ready != nil && !h.ready() {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(AnalysisService, status)
}

// Watch refreshes the statuses every interval until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh()
		}
	}
}

// Shutdown marks every service NOT_SERVING so probes fail while draining.
func (h *Health) Shutdown() {
	h.logger.Info().Msg("Marking gRPC health NOT_SERVING")
	h.server.Shutdown()
}
