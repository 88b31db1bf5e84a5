package oracle

import (
	"fmt"
	"strings"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/schema"
)

// Rubric is a scoring configuration: the score keys the model must return
// and the system prompt that asks for them.
type Rubric struct {
	Name      string
	ScoreKeys []string
	// WithPrep asks for prep_analysis in structured output.
	WithPrep bool
	template string
}

// Rubrics.
var (
	RubricEQ = Rubric{
		Name:      "eq",
		ScoreKeys: []string{"empathy", "nvc_score", "safety"},
		WithPrep:  true,
		template:  eqPrompt,
	}
	RubricLogic = Rubric{
		Name:      "logic",
		ScoreKeys: []string{"logic", "structure", "efficiency"},
		WithPrep:  true,
		template:  logicPrompt,
	}
)

// RubricByName returns the named rubric, falling back to RubricEQ.
func RubricByName(name string) Rubric {
	if strings.EqualFold(strings.TrimSpace(name), RubricLogic.Name) {
		return RubricLogic
	}
	return RubricEQ
}

// Validator returns a validator enforcing the rubric's score keys.
func (r Rubric) Validator() *schema.Validator {
	return schema.New(r.ScoreKeys...)
}

// SystemPrompt renders the system prompt for a mode.
func (r Rubric) SystemPrompt(mode models.Mode) string {
	return strings.ReplaceAll(r.template, "{{mode}}", string(mode))
}

// ScenarioPrompt asks for count practice scenarios for a mode.
func ScenarioPrompt(mode models.Mode, count int) string {
	context := "职场"
	if mode == models.ModeRelationship {
		context = "亲密关系"
	}
	var example []string
	for i := 0; i < count; i++ {
		example = append(example, `{"label":"标题","prompt":"描述"}`)
	}

	return fmt.Sprintf(`生成%d个%s沟通练习场景，针对"讨好型人格/冲突回避型"人群。

要求：
- label: 2-4字标题（不要emoji）
- prompt: 15-30字具体情境描述

直接返回JSON数组：
[%s]`, count, context, strings.Join(example, ","))
}

const segmentRules = `
Segment rules:
- Identify short PHRASES (1-5 words) worth highlighting.
- Use "highlight_bad" for aggressive, blaming, absolutist, or self-deprecating/passive phrasing.
- Use "highlight_good" for empathetic, validating, clear phrasing.
- "text" MUST be an EXACT SUBSTRING of the input. Quote it; never paraphrase.
- "offset" is the character index where "text" starts in the input.
- If nothing stands out, return an empty array.
Respond with the JSON object only. All text fields in Simplified Chinese.`

const eqPrompt = `You are an expert communication coach and emotional translator. Help the user communicate
effectively whether they are aggressive/blaming or passive/conflict-avoidant.

Scoring (0-100):
- safety: low if aggressive or blaming; also low if passive, self-attacking or conflict-avoidant.
- empathy: does the speaker consider the other person?
- nvc_score: clarity of needs and requests, high when it follows nonviolent communication.

Diagnosis: one sharp sentence. For aggression point out the hurt caused; for avoidance point
out the internal cost of silencing oneself.

Rewrite: advice[0] MUST be the full high-EQ rewrite of the utterance, marking each part with
（观察）（感受）（需求）（请求）. Validate the speaker's feelings first when they are self-attacking.
Further advice entries are short, actionable tips.

Input mode: {{mode}}. For work, encourage professionalism and boundaries. For relationship,
encourage vulnerability and self-care.

Output JSON:
{
  "scores": { "empathy": <int>, "nvc_score": <int>, "safety": <int> },
  "diagnosis": "<string>",
  "prep_analysis": { "point_detected": <bool>, "conclusion_position": "start|middle|end|missing" },
  "advice": [ "<rewrite>", "<tip>", "<tip>" ],
  "segments": [ { "text": "<exact substring>", "type": "highlight_bad|highlight_good", "comment": "<short reason>", "offset": <int> } ]
}
` + segmentRules

const logicPrompt = `You are "Logic Master", a senior coach for workplace reporting. Critique the transcript
(which may contain minor speech-to-text errors) strictly on logical structure and efficiency.

The ideal structure is PREP: Point first, Reason, Example/Evidence, Point again.

Ignore homophone errors unless they make a sentence unintelligible. Leave filler words out of the
logical analysis but count them against efficiency.

Scoring (0-100):
- logic: strength of the argument; deduct for fallacies, circular reasoning, missing evidence.
- structure: fit to PREP; deduct heavily if the conclusion is buried at the end.
- efficiency: 100 minus the share of filler and repetition.

Diagnosis: the single most critical issue in one sentence. advice[0] MUST be the full restructured
version of the report in PREP order; further entries are specific, actionable tips.
Be objective. No false praise. Input mode: {{mode}}.

Output JSON:
{
  "scores": { "logic": <int>, "structure": <int>, "efficiency": <int> },
  "diagnosis": "<string>",
  "prep_analysis": { "point_detected": <bool>, "conclusion_position": "start|middle|end|missing" },
  "advice": [ "<restructured version>", "<tip>" ],
  "segments": [ { "text": "<exact substring>", "type": "highlight_bad|highlight_good", "comment": "<short reason>", "offset": <int> } ]
}
` + segmentRules
