package observability

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
)

// healthPrefix matches the gRPC health service. Probes hit it every few
// seconds, so successful calls are not logged.
const healthPrefix = "/grpc.health.v1.Health/"

// UnaryServerInterceptor records call counts and latency for unary RPCs.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeCall(m, info.FullMethod, err, start)
		return resp, err
	}
}

// StreamServerInterceptor records call counts and latency for streaming RPCs
// such as health Watch.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		observeCall(m, info.FullMethod, err, start)
		return err
	}
}

func observeCall(m *metrics.Metrics, method string, err error, start time.Time) {
	duration := time.Since(start)
	code := status.Code(err).String()
	m.RecordGRPCCall(method, code, duration.Seconds())

	if err == nil && strings.HasPrefix(method, healthPrefix) {
		return
	}
	logger := logging.WithComponent("grpc")
	ev := logger.Debug()
	if err != nil {
		ev = logger.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("code", code).
		Dur("duration", duration).
		Msg("gRPC call")
}
