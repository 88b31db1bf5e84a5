package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/report"
)

// describe renders one analysis event as a console line.
func describe(value []byte) (string, error) {
	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return "", err
	}

	switch head.EventType {
	case models.EventAnalysisCompleted:
		var ev models.AnalysisCompleted
		if err := json.Unmarshal(value, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s mode=%s source=%s chars=%d segments=%d dropped=%d %s %dms",
			stamp(ev.Timestamp),
			report.GoodNoteStyle.Render("completed"),
			ev.RequestID, ev.Mode, ev.Source, ev.TextChars, ev.SegmentCount, ev.DroppedSegments,
			scores(ev.Scores), ev.DurationMs), nil
	case models.EventAnalysisFailed:
		var ev models.AnalysisFailed
		if err := json.Unmarshal(value, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s mode=%s source=%s code=%s status=%d",
			stamp(ev.Timestamp),
			report.BadNoteStyle.Render("failed"),
			ev.RequestID, ev.Mode, ev.Source, ev.Code, ev.Status), nil
	default:
		return "", fmt.Errorf("unknown event type %q", head.EventType)
	}
}

func stamp(ms int64) string {
	return report.DimStyle.Render(time.UnixMilli(ms).Format("15:04:05"))
}

func scores(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ",")
}
