// Package config loads service configuration from the environment.
// Values are read once at startup and injected into components; nothing
// re-reads the environment afterwards.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	Observability ObservabilityConfig
	Mock          MockConfig
	Analysis      AnalysisConfig
	LLM           LLMConfig
	STT           STTConfig
	Scenario      ScenarioConfig
	Practice      PracticeConfig
	Kafka         KafkaConfig
}

// ServiceConfig holds identity and listener settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// MockConfig switches every oracle to canned behaviour.
type MockConfig struct {
	Enabled bool
	Delay   time.Duration
}

// AnalysisConfig holds request guardrails for the analyze endpoint.
type AnalysisConfig struct {
	// MinTextChars is the single source of truth for the server-side length guardrail.
	MinTextChars  int
	MaxAudioBytes int64
	Timeout       time.Duration
	Rubric        string // eq, logic
}

// LLMConfig configures the OpenAI-compatible scoring endpoint.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	JSONSchema  bool
}

// Configured reports whether credentials for the scorer are present.
func (c LLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// STTConfig configures the transcription oracle.
type STTConfig struct {
	Provider       string // whisper, openai, google, mock
	WhisperURL     string
	OpenAIModel    string
	LanguageCode   string
	SampleRateHz   int
	AudioEncoding  string
	InterimResults bool
}

// ScenarioConfig configures scenario generation.
type ScenarioConfig struct {
	Timeout time.Duration
	Count   int
	File    string
}

// PracticeConfig holds recording session guardrails and recognition restart policy.
type PracticeConfig struct {
	MinDuration      time.Duration
	MaxDuration      time.Duration
	ThinkingDuration time.Duration
	MaxRestarts      int
	RestartBase      time.Duration
	RestartMax       time.Duration
}

// KafkaConfig configures analysis event publishing.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
}

// Load reads the configuration from environment variables.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-eq-coach")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
		Mock: MockConfig{
			Enabled: envOrDefaultBool("MOCK_MODE", false),
			Delay:   envOrDefaultDuration("MOCK_DELAY", 1500*time.Millisecond),
		},
		Analysis: AnalysisConfig{
			MinTextChars:  envOrDefaultInt("ANALYSIS_MIN_TEXT_CHARS", 5),
			MaxAudioBytes: int64(envOrDefaultInt("ANALYSIS_MAX_AUDIO_BYTES", 25*1024*1024)),
			Timeout:       envOrDefaultDuration("ANALYSIS_TIMEOUT", 60*time.Second),
			Rubric:        envOrDefault("ANALYSIS_RUBRIC", "eq"),
		},
		LLM: LLMConfig{
			APIKey:      envOrDefault("LLM_API_KEY", os.Getenv("MINIMAX_API_KEY")),
			BaseURL:     envOrDefault("LLM_BASE_URL", "https://api.minimax.chat/v1"),
			Model:       envOrDefault("LLM_MODEL", "MiniMax-Text-01"),
			Temperature: envOrDefaultFloat("LLM_TEMPERATURE", 0.7),
			JSONSchema:  envOrDefaultBool("LLM_JSON_SCHEMA", false),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "whisper"),
			WhisperURL:     envOrDefault("STT_WHISPER_URL", "http://localhost:5000/transcribe"),
			OpenAIModel:    envOrDefault("STT_OPENAI_MODEL", "whisper-1"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "zh-CN"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 48000),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "WEBM_OPUS"),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
		},
		Scenario: ScenarioConfig{
			Timeout: envOrDefaultDuration("SCENARIO_TIMEOUT", 8*time.Second),
			Count:   envOrDefaultInt("SCENARIO_COUNT", 4),
			File:    os.Getenv("SCENARIO_FILE"),
		},
		Practice: PracticeConfig{
			MinDuration:      envOrDefaultDuration("PRACTICE_MIN_DURATION", 2*time.Second),
			MaxDuration:      envOrDefaultDuration("PRACTICE_MAX_DURATION", 120*time.Second),
			ThinkingDuration: envOrDefaultDuration("PRACTICE_THINKING", 30*time.Second),
			MaxRestarts:      envOrDefaultInt("RECOGNITION_MAX_RESTARTS", 5),
			RestartBase:      envOrDefaultDuration("RECOGNITION_RESTART_BASE", 250*time.Millisecond),
			RestartMax:       envOrDefaultDuration("RECOGNITION_RESTART_MAX", 4*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:        splitList(os.Getenv("KAFKA_BROKERS")),
			TopicCompleted: envOrDefault("KAFKA_TOPIC_COMPLETED", "coach.analysis.completed"),
			TopicFailed:    envOrDefault("KAFKA_TOPIC_FAILED", "coach.analysis.failed"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", principal),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
