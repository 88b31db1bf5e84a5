package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/schema"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON isolates the JSON object in a model reply. A fenced block wins;
// otherwise the text between the first '{' and the last '}' is used.
func ExtractJSON(reply string) (string, error) {
	return extract(reply, '{', '}')
}

// ExtractArray isolates a JSON array in a model reply, the same way ExtractJSON does for objects.
func ExtractArray(reply string) (string, error) {
	return extract(reply, '[', ']')
}

func extract(reply string, open, close byte) (string, error) {
	candidate := strings.TrimSpace(reply)
	if candidate == "" {
		return "", ErrEmptyReply
	}

	if m := fencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	if candidate != "" && candidate[0] == open && candidate[len(candidate)-1] == close {
		return candidate, nil
	}

	start := strings.IndexByte(candidate, open)
	end := strings.LastIndexByte(candidate, close)
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no %c...%c in reply", ErrMalformed, open, close)
	}
	return candidate[start : end+1], nil
}

// ParseAnalysis extracts, decodes and validates an analysis result.
// Any failure is reported as ErrMalformed; nothing is defaulted.
func ParseAnalysis(reply string, v *schema.Validator) (*models.AnalysisResult, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	normalizeSegments(result.Segments)

	if v != nil {
		if err := v.Validate(&result); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return &result, nil
}

// normalizeSegments maps the short type names some models emit onto the canonical ones.
func normalizeSegments(segs []models.Segment) {
	for i := range segs {
		switch strings.ToLower(strings.TrimSpace(string(segs[i].Type))) {
		case "good", "highlight_good":
			segs[i].Type = models.HighlightGood
		case "bad", "highlight_bad":
			segs[i].Type = models.HighlightBad
		}
	}
}
