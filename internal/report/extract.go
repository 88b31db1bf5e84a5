package report

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	scenarioTagPattern = regexp.MustCompile(`【当前场景[：:]\s*([^】]+?)(?:\s*[-–]\s*[^】]+)?】`)
	anyTagPattern      = regexp.MustCompile(`【当前场景[：:][\s\S]*?】\s*`)
	speechPattern      = regexp.MustCompile(`用户发言[：:]\s*`)
	stepPattern        = regexp.MustCompile(`[（(]([^）)]+)[）)]`)
)

const clauseBreaks = "，。？！：,!?:"

// ScenarioTag is the scenario context split back out of an analyzed text.
type ScenarioTag struct {
	// Label is the scenario label, empty when the text carried no tag.
	Label string
	// Speech is what the user actually said.
	Speech string
	// Offset is the rune index of Speech within the analyzed text, or -1
	// when Speech was rebuilt and no longer lines up with it.
	Offset int
}

// ExtractScenario separates a "【当前场景：…】用户发言：…" prefix from the
// spoken text.
func ExtractScenario(text string) ScenarioTag {
	var label string
	if m := scenarioTagPattern.FindStringSubmatch(text); m != nil {
		label = strings.TrimSpace(m[1])
	}

	loc := speechPattern.FindStringIndex(text)
	if label != "" && loc != nil {
		rest := text[loc[1]:]
		speech := strings.TrimSpace(rest)
		lead := len(rest) - len(strings.TrimLeftFunc(rest, unicode.IsSpace))
		return ScenarioTag{
			Label:  label,
			Speech: speech,
			Offset: utf8.RuneCountInString(text[:loc[1]+lead]),
		}
	}

	cleaned := anyTagPattern.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(speechPattern.ReplaceAllString(cleaned, ""))
	if cleaned == "" || cleaned == strings.TrimSpace(text) {
		lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
		return ScenarioTag{
			Label:  label,
			Speech: strings.TrimSpace(text),
			Offset: utf8.RuneCountInString(text[:lead]),
		}
	}
	return ScenarioTag{Label: label, Speech: cleaned, Offset: -1}
}

// Step is one labelled part of a rewritten utterance, such as 观察 or 感受.
type Step struct {
	Label   string
	Content string
}

// FormulaSteps splits bracketed step labels out of a rewrite.
// It returns the rewrite with the labels removed and the labelled clauses
// in order. A clause is the text between the previous clause break or label
// and the label that follows it.
func FormulaSteps(rewrite string) (string, []Step) {
	var steps []Step
	prev := 0
	for _, m := range stepPattern.FindAllStringSubmatchIndex(rewrite, -1) {
		before := strings.TrimRightFunc(rewrite[prev:m[0]], func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(clauseBreaks, r)
		})
		if i := strings.LastIndexAny(before, clauseBreaks); i >= 0 {
			_, size := utf8.DecodeRuneInString(before[i:])
			before = before[i+size:]
		}
		content := strings.TrimSpace(before)
		label := strings.TrimSpace(rewrite[m[2]:m[3]])
		if content != "" && label != "" {
			steps = append(steps, Step{Label: label, Content: content})
		}
		prev = m[1]
	}
	clean := strings.TrimSpace(stepPattern.ReplaceAllString(rewrite, ""))
	return clean, steps
}
