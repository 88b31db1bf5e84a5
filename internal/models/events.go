package models

// AnalysisCompleted is published after a successful analysis.
type AnalysisCompleted struct {
	EventType       string         `json:"eventType"`
	RequestID       string         `json:"requestId"`
	Principal       string         `json:"principal,omitempty"`
	Mode            Mode           `json:"mode"`
	Source          string         `json:"source"`
	TextChars       int            `json:"textChars"`
	Scores          map[string]int `json:"scores"`
	SegmentCount    int            `json:"segmentCount"`
	DroppedSegments int            `json:"droppedSegments"`
	Mock            bool           `json:"mock"`
	DurationMs      int64          `json:"durationMs"`
	Timestamp       int64          `json:"timestamp"`
}

// AnalysisFailed is published when an analysis is rejected or the scorer fails.
type AnalysisFailed struct {
	EventType string `json:"eventType"`
	RequestID string `json:"requestId"`
	Principal string `json:"principal,omitempty"`
	Mode      Mode   `json:"mode"`
	Source    string `json:"source"`
	Code      string `json:"code"`
	Status    int    `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Event type names.
const (
	EventAnalysisCompleted = "coach.analysis.completed"
	EventAnalysisFailed    = "coach.analysis.failed"
)
