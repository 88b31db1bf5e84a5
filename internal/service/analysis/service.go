package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eq-coach-service/internal/events"
	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/service/oracle"
	oraclemock "eq-coach-service/internal/service/oracle/mock"
	"eq-coach-service/internal/service/scenario"
	"eq-coach-service/internal/service/stt"
	sttmock "eq-coach-service/internal/service/stt/mock"
)

// Sources of the analyzed text.
const (
	SourceText  = "text"
	SourceAudio = "audio"

	// SourceRequest marks a request rejected before its input was read.
	SourceRequest = "request"
)

// Config holds the analysis guardrails.
type Config struct {
	MinTextChars int
	Timeout      time.Duration
	Mock         bool
	MockDelay    time.Duration
}

// Service runs one analysis per request. It holds no per-request state.
type Service struct {
	cfg         Config
	scorer      oracle.Scorer
	transcriber stt.Transcriber
	sink        events.Sink
	metrics     *metrics.Metrics
}

// NewService creates an analysis service. In mock mode both oracles are
// replaced with canned ones; guardrails still apply. A nil scorer or
// transcriber outside mock mode is reported as NOT_CONFIGURED per request.
func NewService(cfg Config, scorer oracle.Scorer, transcriber stt.Transcriber, sink events.Sink) *Service {
	if cfg.Mock {
		scorer = oraclemock.NewScorer(cfg.MockDelay)
		transcriber = sttmock.NewTranscriber()
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 5
	}
	return &Service{
		cfg:         cfg,
		scorer:      scorer,
		transcriber: transcriber,
		sink:        sink,
		metrics:     metrics.DefaultMetrics,
	}
}

// Ready reports whether a scorer is available.
func (s *Service) Ready() bool {
	return s.scorer != nil
}

// Mock reports whether the service runs with canned oracles.
func (s *Service) Mock() bool {
	return s.cfg.Mock
}

type requestIDKey struct{}

// WithRequestID attaches a request ID used for logging and events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Analyze transcribes audio if present, applies the length guardrails and
// scores the text. Errors are always *Error.
func (s *Service) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	start := time.Now()
	id := requestID(ctx)
	mode := models.ParseMode(string(req.Mode))
	source := SourceText
	if req.HasAudio() {
		source = SourceAudio
	}
	logger := logging.WithRequest(id, string(mode))

	result, dropped, err := s.analyze(ctx, logger, req, mode)
	if err != nil {
		aerr := AsError(err)
		s.fail(ctx, logger, id, mode, source, aerr)
		return nil, aerr
	}

	elapsed := time.Since(start)
	s.metrics.RecordAnalysis(string(mode), source, elapsed.Seconds())
	logger.Info().
		Str("source", source).
		Int("segments", len(result.Segments)).
		Bool("mock", s.cfg.Mock).
		Dur("duration", elapsed).
		Msg("Analysis completed")

	if s.sink != nil {
		ev := models.AnalysisCompleted{
			EventType:       models.EventAnalysisCompleted,
			RequestID:       id,
			Mode:            mode,
			Source:          source,
			TextChars:       utf8.RuneCountInString(result.OriginalTranscript),
			Scores:          result.Scores,
			SegmentCount:    len(result.Segments),
			DroppedSegments: dropped,
			Mock:            s.cfg.Mock,
			DurationMs:      elapsed.Milliseconds(),
			Timestamp:       time.Now().UnixMilli(),
		}
		if err := s.sink.PublishCompleted(context.WithoutCancel(ctx), ev); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish analysis event")
		}
	}
	return result, nil
}

func (s *Service) analyze(ctx context.Context, logger zerolog.Logger, req models.AnalyzeRequest, mode models.Mode) (*models.AnalysisResult, int, error) {
	text := req.Text
	if req.HasAudio() {
		transcript, err := s.transcribe(ctx, req)
		if err != nil {
			return nil, 0, err
		}
		text = transcript
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, 0, newError(CodeEmptyInput, http.StatusBadRequest, msgEmptyInput, nil)
	}
	if utf8.RuneCountInString(trimmed) < s.cfg.MinTextChars {
		return nil, 0, newError(CodeTooShort, http.StatusBadRequest, fmt.Sprintf(msgTooShort, s.cfg.MinTextChars), nil)
	}

	if s.scorer == nil {
		return nil, 0, newError(CodeNotConfigured, http.StatusInternalServerError, msgScorerNotConfigured, oracle.ErrNotConfigured)
	}

	analyzed := trimmed
	if req.HasScenario() {
		analyzed = scenario.Compose(req.ScenarioLabel, req.ScenarioPrompt, trimmed)
	}

	scoreCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	result, err := s.scorer.Score(scoreCtx, analyzed, mode)
	if err != nil {
		return nil, 0, classifyScoreError(err)
	}

	dropped := PruneSegments(result, analyzed)
	if dropped > 0 {
		s.metrics.RecordSegmentsDropped(dropped)
		logger.Debug().Int("dropped", dropped).Msg("Dropped segments not found in text")
	}
	result.OriginalTranscript = analyzed
	return result, dropped, nil
}

func (s *Service) transcribe(ctx context.Context, req models.AnalyzeRequest) (string, error) {
	if s.transcriber == nil {
		return "", newError(CodeNotConfigured, http.StatusInternalServerError, msgSTTNotConfigured, nil)
	}

	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, stt.Audio{
		Data:        req.Audio,
		Filename:    req.AudioFilename,
		ContentType: req.AudioContentType,
	})
	kind := "ok"
	if err != nil {
		kind = "transport"
	}
	s.metrics.RecordOracleCall("transcriber", kind, err, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, stt.ErrUnavailable) {
			return "", newError(CodeTranscriptionFailed, http.StatusBadGateway, msgSTTDown, err)
		}
		return "", newError(CodeTranscriptionFailed, http.StatusBadGateway, msgTranscription, err)
	}
	return text, nil
}

func classifyScoreError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeOracleTimeout, http.StatusGatewayTimeout, msgOracleTimeout, err)
	case errors.Is(err, oracle.ErrNotConfigured):
		return newError(CodeNotConfigured, http.StatusInternalServerError, msgScorerNotConfigured, err)
	case errors.Is(err, oracle.ErrMalformed), errors.Is(err, oracle.ErrEmptyReply):
		return newError(CodeMalformedResult, http.StatusInternalServerError, msgMalformed, err)
	default:
		// Transport errors and anything unclassified.
		return newError(CodeOracleUnavailable, http.StatusBadGateway, msgOracleUnavailable, err)
	}
}

// Reject records a request that failed normalization the same way Analyze
// records its own failures: log line, metric and failed event.
func (s *Service) Reject(ctx context.Context, mode models.Mode, err error) *Error {
	aerr := AsError(err)
	id := requestID(ctx)
	s.fail(ctx, logging.WithRequest(id, string(mode)), id, mode, SourceRequest, aerr)
	return aerr
}

func (s *Service) fail(ctx context.Context, logger zerolog.Logger, id string, mode models.Mode, source string, aerr *Error) {
	if aerr.Rejected() {
		s.metrics.RecordRejection(aerr.Code)
		logger.Info().Str("code", aerr.Code).Msg("Analysis rejected")
	} else {
		s.metrics.RecordFailure(aerr.Code)
		logger.Error().Err(aerr.Err).Str("code", aerr.Code).Msg("Analysis failed")
	}

	if s.sink == nil {
		return
	}
	ev := models.AnalysisFailed{
		EventType: models.EventAnalysisFailed,
		RequestID: id,
		Mode:      mode,
		Source:    source,
		Code:      aerr.Code,
		Status:    aerr.Status,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.sink.PublishFailed(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish analysis event")
	}
}

// PruneSegments drops segments whose text does not occur verbatim in text and
// clears offsets that do not point at their segment. Returns the number dropped.
func PruneSegments(r *models.AnalysisResult, text string) int {
	kept := make([]models.Segment, 0, len(r.Segments))
	runes := []rune(text)
	for _, seg := range r.Segments {
		if seg.Text == "" || !strings.Contains(text, seg.Text) {
			continue
		}
		if seg.Offset != nil {
			start := *seg.Offset
			end := start + utf8.RuneCountInString(seg.Text)
			if start < 0 || end > len(runes) || string(runes[start:end]) != seg.Text {
				seg.Offset = nil
			}
		}
		kept = append(kept, seg)
	}
	dropped := len(r.Segments) - len(kept)
	r.Segments = kept
	return dropped
}
