package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/service/oracle"
)

// Scenario list sources.
const (
	SourceGenerated = "generated"
	SourceStatic    = "static"
)

// Generator asks the model for fresh scenarios and falls back to the static
// pool on any failure. It never returns an error.
type Generator struct {
	completer oracle.Completer
	pool      *Pool
	timeout   time.Duration
	count     int
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Timeout time.Duration
	Count   int
}

// NewGenerator creates a generator. A nil completer always serves the pool.
func NewGenerator(completer oracle.Completer, pool *Pool, cfg GeneratorConfig) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 4
	}
	return &Generator{
		completer: completer,
		pool:      pool,
		timeout:   cfg.Timeout,
		count:     cfg.Count,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithComponent("scenario"),
	}
}

// Scenarios returns scenarios for mode and where they came from.
func (g *Generator) Scenarios(ctx context.Context, mode models.Mode) ([]models.Scenario, string) {
	if g.completer == nil {
		g.metrics.RecordScenarioServed(string(mode), SourceStatic)
		return g.static(mode), SourceStatic
	}

	list, err := g.generate(ctx, mode)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		} else if errors.Is(err, oracle.ErrMalformed) || errors.Is(err, oracle.ErrEmptyReply) {
			reason = "malformed"
		}
		g.metrics.RecordScenarioFallback(reason)
		g.metrics.RecordScenarioServed(string(mode), SourceStatic)
		g.logger.Warn().Err(err).Str("reason", reason).Msg("Scenario generation failed, using static pool")
		return g.static(mode), SourceStatic
	}

	g.metrics.RecordScenarioServed(string(mode), SourceGenerated)
	return list, SourceGenerated
}

func (g *Generator) generate(ctx context.Context, mode models.Mode) ([]models.Scenario, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	reply, err := g.completer.Complete(ctx, oracle.Prompt{
		User:        oracle.ScenarioPrompt(mode, g.count),
		Temperature: 0.8,
		MaxTokens:   500,
	})
	g.metrics.RecordOracleCall("scenario", outcome(err), err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return ParseScenarios(reply)
}

// ParseScenarios extracts a scenario array from a model reply, keeping only
// entries with both a label and a prompt.
func ParseScenarios(reply string) ([]models.Scenario, error) {
	raw, err := oracle.ExtractArray(reply)
	if err != nil {
		return nil, err
	}

	var list []models.Scenario
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, errors.Join(oracle.ErrMalformed, err)
	}

	out := list[:0]
	for _, s := range list {
		s.Label = strings.TrimSpace(s.Label)
		s.Prompt = strings.TrimSpace(s.Prompt)
		if s.Label == "" || s.Prompt == "" || utf8.RuneCountInString(s.Label) > 12 {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.Join(oracle.ErrMalformed, errors.New("no usable scenarios"))
	}
	return out, nil
}

func (g *Generator) static(mode models.Mode) []models.Scenario {
	list := g.pool.For(mode)
	out := make([]models.Scenario, len(list))
	copy(out, list)
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
