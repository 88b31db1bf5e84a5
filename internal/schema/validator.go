// Package schema validates the structure of analysis results before they are
// trusted, and describes that structure as JSON schema for structured output.
package schema

import (
	"fmt"

	"eq-coach-service/internal/models"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// ValidationError describes the first structural problem found in a result.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validator checks that an AnalysisResult carries every required field with
// the right shape. Missing fields are never defaulted.
type Validator struct {
	scoreKeys []string
}

// New creates a validator requiring the given score keys.
// With no keys, any non-empty score set is accepted.
func New(scoreKeys ...string) *Validator {
	return &Validator{scoreKeys: scoreKeys}
}

// ScoreKeys returns the required score keys.
func (v *Validator) ScoreKeys() []string {
	return v.scoreKeys
}

// Validate returns a *ValidationError if the result is incomplete.
func (v *Validator) Validate(r *models.AnalysisResult) error {
	if r == nil {
		return &ValidationError{Field: "result", Reason: "missing"}
	}

	if len(r.Scores) == 0 {
		return &ValidationError{Field: "scores", Reason: "missing"}
	}
	for _, k := range v.scoreKeys {
		if _, ok := r.Scores[k]; !ok {
			return &ValidationError{Field: "scores." + k, Reason: "missing"}
		}
	}
	for k, s := range r.Scores {
		if s < MinScore || s > MaxScore {
			return &ValidationError{Field: "scores." + k, Reason: fmt.Sprintf("%d out of range", s)}
		}
	}

	if r.Diagnosis == "" {
		return &ValidationError{Field: "diagnosis", Reason: "missing"}
	}

	if len(r.Advice) == 0 {
		return &ValidationError{Field: "advice", Reason: "missing"}
	}
	if r.Advice[0] == "" {
		return &ValidationError{Field: "advice[0]", Reason: "empty rewrite"}
	}

	// An empty list is valid; an absent one is not.
	if r.Segments == nil {
		return &ValidationError{Field: "segments", Reason: "missing"}
	}
	for i, s := range r.Segments {
		switch s.Type {
		case models.HighlightGood, models.HighlightBad:
		default:
			return &ValidationError{Field: fmt.Sprintf("segments[%d].type", i), Reason: fmt.Sprintf("unknown type %q", s.Type)}
		}
	}

	if p := r.PrepAnalysis; p != nil {
		switch p.ConclusionPosition {
		case "start", "middle", "end", "none", "missing":
		default:
			return &ValidationError{Field: "prep_analysis.conclusion_position", Reason: fmt.Sprintf("unknown position %q", p.ConclusionPosition)}
		}
	}

	return nil
}
