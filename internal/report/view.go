package report

import (
	"sort"
	"strings"

	"eq-coach-service/internal/models"
)

// NoTranscript is shown when the result carries no analyzed text.
const NoTranscript = "（未获取到原始文本）"

var scoreLabels = map[string]string{
	"empathy":    "同理心",
	"nvc_score":  "非暴力沟通",
	"safety":     "安全感",
	"logic":      "逻辑",
	"structure":  "结构",
	"efficiency": "效率",
}

// Score is one named score with its display label.
type Score struct {
	Key   string
	Label string
	Value int
}

// View is everything the report shows for one result.
type View struct {
	Scores    []Score
	Diagnosis string
	Prep      *models.PrepAnalysis
	Scenario  string
	// Transcript is the spoken text the spans cover.
	Transcript string
	Spans      []Span
	// Dropped counts segments that could not be placed in Transcript.
	Dropped int
	Rewrite string
	Steps   []Step
	Tips    []string
}

// Build reconciles a result into a View. Offsets reported against the
// scenario-tagged text are shifted onto the spoken text before matching.
func Build(r *models.AnalysisResult) View {
	if r == nil {
		return View{Transcript: NoTranscript}
	}

	v := View{
		Diagnosis: r.Diagnosis,
		Prep:      r.PrepAnalysis,
	}

	keys := make([]string, 0, len(r.Scores))
	for k := range r.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		label, ok := scoreLabels[k]
		if !ok {
			label = k
		}
		v.Scores = append(v.Scores, Score{Key: k, Label: label, Value: r.Scores[k]})
	}

	tag := ExtractScenario(r.OriginalTranscript)
	v.Scenario = tag.Label
	v.Transcript = tag.Speech
	if v.Transcript == "" {
		v.Transcript = NoTranscript
	} else {
		segs := shiftSegments(r.Segments, tag.Offset)
		v.Spans = Reconcile(v.Transcript, segs)
		v.Dropped = countUsable(segs) - countHighlighted(v.Spans)
	}
	if len(v.Spans) == 0 {
		v.Spans = []Span{{Text: v.Transcript, End: len([]rune(v.Transcript))}}
	}

	if rw := r.Rewrite(); rw != "" {
		v.Rewrite, v.Steps = FormulaSteps(rw)
		if v.Rewrite == "" {
			v.Rewrite = rw
		}
	}
	if len(r.Advice) > 1 {
		v.Tips = append([]string{}, r.Advice[1:]...)
	}
	return v
}

// shiftSegments copies segs with offsets moved by -by. Offsets that cannot
// be mapped are cleared so reconciliation falls back to text search.
func shiftSegments(segs []models.Segment, by int) []models.Segment {
	out := make([]models.Segment, len(segs))
	for i, s := range segs {
		out[i] = s
		out[i].Offset = nil
		if s.Offset == nil || by < 0 {
			continue
		}
		if off := *s.Offset - by; off >= 0 {
			out[i].Offset = &off
		}
	}
	return out
}

func countUsable(segs []models.Segment) int {
	n := 0
	for _, s := range segs {
		if strings.TrimSpace(s.Text) != "" {
			n++
		}
	}
	return n
}

func countHighlighted(spans []Span) int {
	n := 0
	for _, s := range spans {
		if s.Highlighted() {
			n++
		}
	}
	return n
}
