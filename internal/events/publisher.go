// Package events publishes analysis outcome events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
)

// Sink receives analysis outcome events.
type Sink interface {
	PublishCompleted(ctx context.Context, ev models.AnalysisCompleted) error
	PublishFailed(ctx context.Context, ev models.AnalysisFailed) error
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
	Enabled        bool
}

// route is where one event type goes. writer is nil in log-only mode.
type route struct {
	topic  string
	writer *kafka.Writer
}

// Publisher writes each event type to its own topic, keyed by request ID.
// Without brokers it only logs.
type Publisher struct {
	routes    map[string]*route
	principal string
	enabled   bool
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// New creates a publisher. A nil or disabled config gives log-only mode.
func New(cfg *Config) *Publisher {
	if cfg == nil {
		cfg = &Config{}
	}
	p := &Publisher{
		routes: map[string]*route{
			models.EventAnalysisCompleted: {topic: cfg.TopicCompleted},
			models.EventAnalysisFailed:    {topic: cfg.TopicFailed},
		},
		principal: cfg.Principal,
		enabled:   cfg.Enabled && len(cfg.Brokers) > 0,
		logger:    logging.WithComponent("events"),
		metrics:   metrics.DefaultMetrics,
	}
	if !p.enabled {
		p.logger.Info().Msg("Kafka disabled, analysis events are logged only")
		return p
	}

	// Generous dial timeout: broker DNS can be slow to resolve in-cluster.
	transport := &kafka.Transport{
		Dial: (&kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}).DialFunc,
	}
	for _, r := range p.routes {
		r.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        r.topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	p.logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCompleted", cfg.TopicCompleted).
		Str("topicFailed", cfg.TopicFailed).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

// PublishCompleted publishes a completed-analysis event.
func (p *Publisher) PublishCompleted(ctx context.Context, ev models.AnalysisCompleted) error {
	if ev.Principal == "" {
		ev.Principal = p.principal
	}
	return p.publish(ctx, models.EventAnalysisCompleted, ev.RequestID, ev)
}

// PublishFailed publishes a failed-analysis event.
func (p *Publisher) PublishFailed(ctx context.Context, ev models.AnalysisFailed) error {
	if ev.Principal == "" {
		ev.Principal = p.principal
	}
	return p.publish(ctx, models.EventAnalysisFailed, ev.RequestID, ev)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, event any) error {
	r, ok := p.routes[eventType]
	if !ok {
		return fmt.Errorf("no topic for event type %q", eventType)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	start := time.Now()
	if r.writer == nil {
		p.logger.Debug().
			Str("topic", r.topic).
			Str("key", key).
			RawJSON("payload", payload).
			Msg("Analysis event")
		p.metrics.RecordKafkaPublish(r.topic, eventType, nil, 0)
		return nil
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	})
	p.metrics.RecordKafkaPublish(r.topic, eventType, err, time.Since(start).Seconds())
	if err != nil {
		p.logger.Error().Err(err).Str("topic", r.topic).Str("key", key).Msg("Failed to publish analysis event")
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the writers.
func (p *Publisher) Close() error {
	var errs []error
	for _, r := range p.routes {
		if r.writer != nil {
			if err := r.writer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s writer: %w", r.topic, err))
			}
		}
	}
	return errors.Join(errs...)
}

var _ Sink = (*Publisher)(nil)
