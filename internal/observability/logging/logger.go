// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level   string    // debug, info, warn, error
	Format  string    // json, console
	Output  io.Writer // defaults to stdout
	Service string    // attached to every entry when set
}

// DefaultConfig returns the service logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// Init replaces the global logger. An unknown or empty level means info.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	log.Logger = ctx.Caller().Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithRequest returns a logger with analysis request context.
func WithRequest(requestID string, mode string) zerolog.Logger {
	return log.With().
		Str("requestId", requestID).
		Str("mode", mode).
		Logger()
}

// WithSession returns a logger with practice session context.
func WithSession(sessionID string, mode string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Str("mode", mode).
		Logger()
}

// WithOracle returns a logger tagged with an external oracle and its provider.
func WithOracle(oracle, provider string) zerolog.Logger {
	return log.With().
		Str("oracle", oracle).
		Str("provider", provider).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
