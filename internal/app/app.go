package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eq-coach-service/internal/config"
	"eq-coach-service/internal/events"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/service/analysis"
	"eq-coach-service/internal/service/oracle"
	oracleopenai "eq-coach-service/internal/service/oracle/openai"
	"eq-coach-service/internal/service/practice"
	"eq-coach-service/internal/service/scenario"
	"eq-coach-service/internal/service/stt"
	"eq-coach-service/internal/service/stt/google"
	sttmock "eq-coach-service/internal/service/stt/mock"
	sttopenai "eq-coach-service/internal/service/stt/openai"
	"eq-coach-service/internal/service/stt/whisper"
	"eq-coach-service/internal/service/transcript"
)

const serviceName = "eq-coach-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Analysis  *analysis.Service
	Scenarios *scenario.Generator
	Picker    *scenario.Picker
	Limits    analysis.Limits
	Practice  practice.Config
	// Recognizers creates server-side recognizers for live practice. Nil
	// means recognition runs on the client and results arrive over the socket.
	Recognizers practice.RecognizerFactory

	publisher *events.Publisher
	closers   []func() error
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("component", "application").
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("EQ coach service application created")
	return a
}

// setupLogger configures zerolog for the service.
// ZEROLOG_LOG_LEVEL overrides LOG_LEVEL; ENV=dev forces console output.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	lc.Level = a.Cfg.Observability.LogLevel
	lc.Format = a.Cfg.Observability.LogFormat
	lc.Service = serviceName
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		lc.Level = envLevel
	}
	if os.Getenv("ENV") == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	a.Logger = log.With().
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start wires the oracles and services required before serving traffic.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	cfg := a.Cfg
	a.StartupTime = time.Now().UTC()

	a.publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.publisher.Close)

	var completer oracle.Completer
	var scorer oracle.Scorer
	if cfg.LLM.Configured() && !cfg.Mock.Enabled {
		client, err := oracleopenai.New(cfg.LLM.APIKey, cfg.LLM.Model,
			oracleopenai.WithBaseURL(cfg.LLM.BaseURL),
			oracleopenai.WithTimeout(cfg.Analysis.Timeout),
		)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		completer = client

		opts := []oracle.ScorerOption{oracle.WithTemperature(cfg.LLM.Temperature)}
		if cfg.LLM.JSONSchema {
			opts = append(opts, oracle.WithStructuredOutput())
		}
		scorer = oracle.NewLLMScorer(client, oracle.RubricByName(cfg.Analysis.Rubric), opts...)
	} else if !cfg.Mock.Enabled {
		startLogger.Warn().Msg("LLM_API_KEY not set, analysis will report NOT_CONFIGURED")
	}

	var transcriber stt.Transcriber
	if !cfg.Mock.Enabled {
		t, err := a.transcriber(ctx)
		if err != nil {
			startLogger.Warn().Err(err).Str("provider", cfg.STT.Provider).Msg("Transcription unavailable")
		} else {
			transcriber = t
		}
	}

	a.Analysis = analysis.NewService(analysis.Config{
		MinTextChars: cfg.Analysis.MinTextChars,
		Timeout:      cfg.Analysis.Timeout,
		Mock:         cfg.Mock.Enabled,
		MockDelay:    cfg.Mock.Delay,
	}, scorer, transcriber, a.publisher)
	a.Limits = analysis.Limits{
		MaxAudioBytes: cfg.Analysis.MaxAudioBytes,
		MaxJSONBytes:  analysis.DefaultLimits().MaxJSONBytes,
	}

	pool := scenario.DefaultPool()
	if cfg.Scenario.File != "" {
		p, err := scenario.LoadPool(cfg.Scenario.File)
		if err != nil {
			return fmt.Errorf("load scenario pool: %w", err)
		}
		pool = p
	}
	a.Scenarios = scenario.NewGenerator(completer, pool, scenario.GeneratorConfig{
		Timeout: cfg.Scenario.Timeout,
		Count:   cfg.Scenario.Count,
	})
	a.Picker = scenario.NewPicker(pool)

	a.Practice = practice.Config{
		Mode:             "",
		MinDuration:      cfg.Practice.MinDuration,
		MaxDuration:      cfg.Practice.MaxDuration,
		ThinkingDuration: cfg.Practice.ThinkingDuration,
		Restart: transcript.RestartPolicy{
			MaxConsecutive:  cfg.Practice.MaxRestarts,
			BaseDelay:       cfg.Practice.RestartBase,
			MaxDelay:        cfg.Practice.RestartMax,
			ImmediateWindow: transcript.DefaultRestartPolicy().ImmediateWindow,
		},
	}
	a.Recognizers = a.recognizers()

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Bool("mock", cfg.Mock.Enabled).
		Bool("ready", a.Analysis.Ready()).
		Str("stt", cfg.STT.Provider).
		Str("rubric", cfg.Analysis.Rubric).
		Msg("EQ coach service starting")

	return nil
}

// Ready reports whether analysis requests can be served.
func (a *Application) Ready() bool {
	return a.Analysis != nil && a.Analysis.Ready()
}

func (a *Application) transcriber(ctx context.Context) (stt.Transcriber, error) {
	c := a.Cfg.STT
	switch c.Provider {
	case "mock":
		return sttmock.NewTranscriber(), nil
	case "openai":
		return sttopenai.New(a.Cfg.LLM.APIKey, c.OpenAIModel,
			sttopenai.WithBaseURL(a.Cfg.LLM.BaseURL),
			sttopenai.WithLanguage(isoLanguage(c.LanguageCode)),
			sttopenai.WithTimeout(a.Cfg.Analysis.Timeout),
		)
	case "google":
		adapter, err := google.New(ctx, a.googleConfig())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, adapter.Shutdown)
		return adapter, nil
	default:
		return whisper.New(c.WhisperURL, whisper.WithLanguage(isoLanguage(c.LanguageCode)))
	}
}

func (a *Application) recognizers() practice.RecognizerFactory {
	switch {
	case a.Cfg.Mock.Enabled || a.Cfg.STT.Provider == "mock":
		return func(ctx context.Context) (stt.Recognizer, error) {
			return sttmock.New(), nil
		}
	case a.Cfg.STT.Provider == "google":
		gc := a.googleConfig()
		return func(ctx context.Context) (stt.Recognizer, error) {
			adapter, err := google.New(ctx, gc)
			if err != nil {
				return nil, err
			}
			return ownedRecognizer{adapter}, nil
		}
	default:
		return nil
	}
}

func (a *Application) googleConfig() google.Config {
	c := a.Cfg.STT
	return google.Config{
		LanguageCode:   c.LanguageCode,
		SampleRateHz:   c.SampleRateHz,
		InterimResults: c.InterimResults,
		AudioEncoding:  c.AudioEncoding,
	}
}

// ownedRecognizer closes its speech client together with the session.
type ownedRecognizer struct {
	*google.Adapter
}

func (r ownedRecognizer) Close() error {
	return r.Shutdown()
}

// isoLanguage turns a BCP-47 tag such as zh-CN into its ISO-639-1 prefix.
func isoLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return tag[:i]
	}
	return tag
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Cleanup failed")
		}
	}
	shutdownLogger.Info().Msg("EQ coach service shutting down")
}
