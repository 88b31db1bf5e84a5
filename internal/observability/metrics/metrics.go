// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eq_coach"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls    *prometheus.CounterVec
	GRPCDuration *prometheus.HistogramVec

	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysesRejected *prometheus.CounterVec
	AnalysesFailed   *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	SegmentsDropped  prometheus.Counter

	// Oracle metrics
	OracleLatency *prometheus.HistogramVec
	OracleErrors  *prometheus.CounterVec

	// Scenario metrics
	ScenarioRequests  *prometheus.CounterVec
	ScenarioFallbacks *prometheus.CounterVec

	// Practice session metrics
	SessionsTotal          prometheus.Counter
	SessionsActive         prometheus.Gauge
	SessionOutcomes        *prometheus.CounterVec
	CaptureFailures        *prometheus.CounterVec
	RecognitionRestarts    prometheus.Counter
	RecognitionUnavailable prometheus.Counter

	// Transcript metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"route"}),

		// gRPC metrics
		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls",
		}, []string{"method", "code"}),
		GRPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),

		// Analysis metrics
		AnalysesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of successful analyses",
		}, []string{"mode", "source"}),
		AnalysesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_rejected_total",
			Help:      "Total number of analyses rejected by input guardrails",
		}, []string{"code"}),
		AnalysesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_failed_total",
			Help:      "Total number of analyses failed after passing guardrails",
		}, []string{"code"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		SegmentsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of highlight segments dropped for not matching the analyzed text",
		}),

		// Oracle metrics
		OracleLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_latency_seconds",
			Help:      "Latency of external oracle calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"oracle", "kind"}),
		OracleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_errors_total",
			Help:      "Total number of external oracle errors",
		}, []string{"oracle", "error_type"}),

		// Scenario metrics
		ScenarioRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_requests_total",
			Help:      "Total number of scenario lists served",
		}, []string{"mode", "source"}),
		ScenarioFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_fallbacks_total",
			Help:      "Total number of times generation fell back to the static pool",
		}, []string{"reason"}),

		// Practice session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "practice_sessions_total",
			Help:      "Total number of practice sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "practice_sessions_active",
			Help:      "Number of currently connected practice sessions",
		}),
		SessionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "practice_outcomes_total",
			Help:      "Practice attempt outcomes",
		}, []string{"outcome"}),
		CaptureFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Microphone acquisition failures by cause",
		}, []string{"cause"}),
		RecognitionRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_restarts_total",
			Help:      "Total number of speech recognition restarts after passive termination",
		}),
		RecognitionUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_unavailable_total",
			Help:      "Total number of sessions where recognition was given up after repeated failures",
		}),

		// Transcript metrics
		TranscriptsInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of finalized transcript chunks received",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string, durationSeconds float64) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
	m.GRPCDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordAnalysis records a successful analysis.
func (m *Metrics) RecordAnalysis(mode, source string, durationSeconds float64) {
	m.AnalysesTotal.WithLabelValues(mode, source).Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordRejection records an input rejected before reaching any oracle.
func (m *Metrics) RecordRejection(code string) {
	m.AnalysesRejected.WithLabelValues(code).Inc()
}

// RecordFailure records an analysis that failed after passing guardrails.
func (m *Metrics) RecordFailure(code string) {
	m.AnalysesFailed.WithLabelValues(code).Inc()
}

// RecordSegmentsDropped records highlight segments that did not match the text.
func (m *Metrics) RecordSegmentsDropped(n int) {
	if n > 0 {
		m.SegmentsDropped.Add(float64(n))
	}
}

// RecordOracleCall records the latency and outcome of an oracle call.
func (m *Metrics) RecordOracleCall(oracle, kind string, err error, latencySeconds float64) {
	m.OracleLatency.WithLabelValues(oracle, kind).Observe(latencySeconds)
	if err != nil {
		m.OracleErrors.WithLabelValues(oracle, kind).Inc()
	}
}

// RecordScenarioServed records which source a scenario list came from.
func (m *Metrics) RecordScenarioServed(mode, source string) {
	m.ScenarioRequests.WithLabelValues(mode, source).Inc()
}

// RecordScenarioFallback records why generation fell back to the static pool.
func (m *Metrics) RecordScenarioFallback(reason string) {
	m.ScenarioFallbacks.WithLabelValues(reason).Inc()
}

// RecordSessionStart records a new practice session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a practice session ending.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordOutcome records the outcome of one practice attempt.
func (m *Metrics) RecordOutcome(outcome string) {
	m.SessionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCaptureFailure records a microphone acquisition failure.
func (m *Metrics) RecordCaptureFailure(cause string) {
	m.CaptureFailures.WithLabelValues(cause).Inc()
}

// RecordRecognitionRestart records a transparent recognition restart.
func (m *Metrics) RecordRecognitionRestart() {
	m.RecognitionRestarts.Inc()
}

// RecordRecognitionUnavailable records recognition being given up.
func (m *Metrics) RecordRecognitionUnavailable() {
	m.RecognitionUnavailable.Inc()
}

// RecordInterimTranscript records an interim transcript received.
func (m *Metrics) RecordInterimTranscript() {
	m.TranscriptsInterim.Inc()
}

// RecordFinalTranscripts records finalized transcript chunks received.
func (m *Metrics) RecordFinalTranscripts(n int) {
	if n > 0 {
		m.TranscriptsFinal.Add(float64(n))
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
