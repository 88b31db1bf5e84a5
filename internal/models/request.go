package models

// AnalyzeRequest is a normalized analysis submission, independent of its wire shape.
type AnalyzeRequest struct {
	Text           string `json:"text"`
	Mode           Mode   `json:"mode,omitempty"`
	ScenarioLabel  string `json:"scenarioLabel,omitempty"`
	ScenarioPrompt string `json:"scenarioPrompt,omitempty"`

	Audio            []byte `json:"-"`
	AudioFilename    string `json:"-"`
	AudioContentType string `json:"-"`
}

// HasAudio reports whether the request carries a non-empty audio blob.
func (r AnalyzeRequest) HasAudio() bool {
	return len(r.Audio) > 0
}

// HasScenario reports whether a scenario context should be attached.
func (r AnalyzeRequest) HasScenario() bool {
	return r.ScenarioLabel != "" || r.ScenarioPrompt != ""
}

// Envelope is the JSON body returned by every API endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Scenario is a practice situation the user responds to.
type Scenario struct {
	Label  string `json:"label" yaml:"label"`
	Prompt string `json:"prompt" yaml:"prompt"`

	Subtitle    string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	ButtonText  string `json:"buttonText,omitempty" yaml:"button_text,omitempty"`
}
