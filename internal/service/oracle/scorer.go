package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/schema"
)

// LLMScorer implements Scorer on top of a chat Completer.
type LLMScorer struct {
	completer   Completer
	rubric      Rubric
	validator   *schema.Validator
	temperature float64
	schema      map[string]any
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// ScorerOption configures an LLMScorer.
type ScorerOption func(*LLMScorer)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ScorerOption {
	return func(s *LLMScorer) {
		s.temperature = t
	}
}

// WithStructuredOutput asks the model for output matching the rubric's JSON schema.
func WithStructuredOutput() ScorerOption {
	return func(s *LLMScorer) {
		sch, err := schema.AnalysisSchema(s.rubric.ScoreKeys, s.rubric.WithPrep)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Structured output disabled")
			return
		}
		s.schema = sch
	}
}

// NewLLMScorer creates a scorer for the rubric. A nil completer yields
// ErrNotConfigured on every call.
func NewLLMScorer(completer Completer, rubric Rubric, opts ...ScorerOption) *LLMScorer {
	s := &LLMScorer{
		completer:   completer,
		rubric:      rubric,
		validator:   rubric.Validator(),
		temperature: 0.7,
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithOracle("scorer", rubric.Name),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Rubric returns the scorer's rubric.
func (s *LLMScorer) Rubric() Rubric {
	return s.rubric
}

// Score sends the text to the model and parses its reply. There is no retry.
func (s *LLMScorer) Score(ctx context.Context, text string, mode models.Mode) (*models.AnalysisResult, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, Prompt{
		System:      s.rubric.SystemPrompt(mode),
		User:        text,
		Temperature: s.temperature,
		Schema:      s.schema,
		SchemaName:  "analysis_result",
	})
	if err != nil {
		s.record(err, start)
		return nil, err
	}

	result, err := ParseAnalysis(reply, s.validator)
	s.record(err, start)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("replyLength", len(reply)).
			Msg("Discarding malformed analysis reply")
		return nil, err
	}

	s.logger.Debug().
		Int("segments", len(result.Segments)).
		Dur("latency", time.Since(start)).
		Msg("Analysis reply parsed")
	return result, nil
}

func (s *LLMScorer) record(err error, start time.Time) {
	kind := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		kind = "timeout"
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrEmptyReply):
		kind = "malformed"
	default:
		kind = "transport"
	}
	s.metrics.RecordOracleCall("scorer", kind, err, time.Since(start).Seconds())
}
