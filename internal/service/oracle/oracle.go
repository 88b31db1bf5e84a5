// Package oracle is the boundary to the hosted language model. Callers hand
// in text and get back a validated AnalysisResult; raw model replies never
// leave this package.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"eq-coach-service/internal/models"
)

// Errors returned by oracles.
var (
	ErrNotConfigured = errors.New("oracle not configured")
	ErrEmptyReply    = errors.New("oracle returned an empty reply")
	ErrMalformed     = errors.New("oracle returned malformed structure")
)

// TransportError is a network failure or non-success status from the oracle.
type TransportError struct {
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("oracle transport: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("oracle transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Scorer scores and rewrites one utterance.
type Scorer interface {
	Score(ctx context.Context, text string, mode models.Mode) (*models.AnalysisResult, error)
}

// Prompt is one chat completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// Schema, when set, requests structured output matching it.
	Schema     map[string]any
	SchemaName string
}

// Completer returns the raw text reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
