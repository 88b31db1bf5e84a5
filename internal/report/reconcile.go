// Package report turns an AnalysisResult into a renderable view: highlight
// spans over the spoken text, the extracted scenario and the rewrite steps.
package report

import (
	"sort"
	"strings"

	"eq-coach-service/internal/models"
)

// Span is a run of transcript text. Segment is nil for plain text.
// Start and End are rune offsets into the reconciled transcript.
type Span struct {
	Text    string
	Start   int
	End     int
	Segment *models.Segment
}

// Highlighted reports whether the span carries a segment.
func (s Span) Highlighted() bool {
	return s.Segment != nil
}

type placement struct {
	start, end int
	seg        *models.Segment
}

// Reconcile splits transcript into plain and highlighted spans.
//
// Segments are placed by position, not by text equality. A segment whose
// offset points at its exact text is placed there first. The rest take the
// first occurrence not already claimed by another segment. Segments that do
// not occur verbatim, or only overlap claimed text, are dropped.
func Reconcile(transcript string, segments []models.Segment) []Span {
	runes := []rune(transcript)
	if len(runes) == 0 {
		return nil
	}

	claimed := make([]bool, len(runes))
	var placed []placement
	pending := make([]int, 0, len(segments))

	claim := func(i, start, n int) {
		for k := start; k < start+n; k++ {
			claimed[k] = true
		}
		placed = append(placed, placement{start: start, end: start + n, seg: &segments[i]})
	}

	for i := range segments {
		seg := []rune(segments[i].Text)
		if strings.TrimSpace(segments[i].Text) == "" {
			continue
		}
		if off := segments[i].Offset; off != nil && matchAt(runes, seg, *off) && free(claimed, *off, len(seg)) {
			claim(i, *off, len(seg))
			continue
		}
		pending = append(pending, i)
	}

	for _, i := range pending {
		seg := []rune(segments[i].Text)
		for start := 0; start+len(seg) <= len(runes); start++ {
			if matchAt(runes, seg, start) && free(claimed, start, len(seg)) {
				claim(i, start, len(seg))
				break
			}
		}
	}

	sort.Slice(placed, func(a, b int) bool { return placed[a].start < placed[b].start })

	spans := make([]Span, 0, 2*len(placed)+1)
	pos := 0
	for _, p := range placed {
		if p.start > pos {
			spans = append(spans, Span{Text: string(runes[pos:p.start]), Start: pos, End: p.start})
		}
		spans = append(spans, Span{Text: string(runes[p.start:p.end]), Start: p.start, End: p.end, Segment: p.seg})
		pos = p.end
	}
	if pos < len(runes) {
		spans = append(spans, Span{Text: string(runes[pos:]), Start: pos, End: len(runes)})
	}
	return spans
}

func matchAt(runes, seg []rune, at int) bool {
	if at < 0 || len(seg) == 0 || at+len(seg) > len(runes) {
		return false
	}
	for k, r := range seg {
		if runes[at+k] != r {
			return false
		}
	}
	return true
}

func free(claimed []bool, start, n int) bool {
	for k := start; k < start+n; k++ {
		if claimed[k] {
			return false
		}
	}
	return true
}
