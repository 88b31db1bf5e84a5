package main

import (
	"encoding/json"
	"strings"
	"testing"

	"eq-coach-service/internal/models"
)

func TestDescribe(t *testing.T) {
	completed, _ := json.Marshal(models.AnalysisCompleted{
		EventType:    models.EventAnalysisCompleted,
		RequestID:    "req-1",
		Mode:         models.ModeWork,
		Source:       "text",
		Scores:       map[string]int{"safety": 60, "empathy": 55},
		SegmentCount: 4,
	})
	failed, _ := json.Marshal(models.AnalysisFailed{
		EventType: models.EventAnalysisFailed,
		RequestID: "req-2",
		Mode:      models.ModeRelationship,
		Code:      "TOO_SHORT",
		Status:    400,
	})

	tests := []struct {
		name    string
		value   []byte
		want    []string
		wantErr bool
	}{
		{"completed", completed, []string{"req-1", "mode=work", "segments=4", "empathy=55,safety=60"}, false},
		{"failed", failed, []string{"req-2", "mode=relationship", "code=TOO_SHORT", "status=400"}, false},
		{"unknown type", []byte(`{"eventType":"other"}`), nil, true},
		{"not json", []byte(`nope`), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := describe(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("expected %q in %q", w, line)
				}
			}
		})
	}
}
