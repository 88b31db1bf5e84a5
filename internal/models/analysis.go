// Package models defines the data structures exchanged by the coaching service.
package models

import (
	"encoding/json"
	"math"
	"strings"
)

// Mode selects the prompt tone and scenario pool for an analysis.
type Mode string

const (
	ModeWork         Mode = "work"
	ModeRelationship Mode = "relationship"
)

// DefaultMode is used whenever a caller omits or misspells the mode.
const DefaultMode = ModeWork

// ParseMode maps a raw mode value onto a known Mode.
// Unrecognized values fall back to DefaultMode rather than erroring.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRelationship:
		return ModeRelationship
	case ModeWork:
		return ModeWork
	default:
		return DefaultMode
	}
}

// SegmentType tags a highlighted phrase as good or poor communication.
type SegmentType string

const (
	HighlightGood SegmentType = "highlight_good"
	HighlightBad  SegmentType = "highlight_bad"
)

// Segment is a phrase of the analyzed text singled out by the scorer.
// Text must be a literal substring of the analyzed transcript; consumers verify it.
type Segment struct {
	Text    string      `json:"text"`
	Type    SegmentType `json:"type"`
	Comment string      `json:"comment"`
	// Offset is the character (rune) index of Text in the analyzed transcript, when known.
	Offset *int `json:"offset,omitempty"`
}

// PrepAnalysis describes whether the speaker stated a point and where.
type PrepAnalysis struct {
	PointDetected      bool   `json:"point_detected"`
	ConclusionPosition string `json:"conclusion_position"`
}

// Scores maps a dimension such as "empathy" to a 0-100 score.
type Scores map[string]int

// UnmarshalJSON accepts any JSON number and rounds it to the nearest integer,
// so a fractional score from the scorer does not void the whole result.
func (s *Scores) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Scores, len(raw))
	for k, v := range raw {
		out[k] = int(math.Round(v))
	}
	*s = out
	return nil
}

// AnalysisResult is the validated scoring and rewrite produced for one submission.
type AnalysisResult struct {
	Scores             Scores         `json:"scores"`
	Diagnosis          string         `json:"diagnosis"`
	PrepAnalysis       *PrepAnalysis  `json:"prep_analysis,omitempty"`
	Advice             []string       `json:"advice"`
	Segments           []Segment      `json:"segments"`
	OriginalTranscript string         `json:"original_transcript,omitempty"`
}

// Rewrite returns the rewritten utterance, conventionally the first advice entry.
func (r *AnalysisResult) Rewrite() string {
	if r == nil || len(r.Advice) == 0 {
		return ""
	}
	return r.Advice[0]
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := &AnalysisResult{
		Diagnosis:          r.Diagnosis,
		OriginalTranscript: r.OriginalTranscript,
	}
	if r.Scores != nil {
		out.Scores = make(Scores, len(r.Scores))
		for k, v := range r.Scores {
			out.Scores[k] = v
		}
	}
	if r.PrepAnalysis != nil {
		p := *r.PrepAnalysis
		out.PrepAnalysis = &p
	}
	if r.Advice != nil {
		out.Advice = append([]string{}, r.Advice...)
	}
	if r.Segments != nil {
		out.Segments = make([]Segment, len(r.Segments))
		for i, s := range r.Segments {
			out.Segments[i] = s
			if s.Offset != nil {
				off := *s.Offset
				out.Segments[i].Offset = &off
			}
		}
	}
	return out
}
