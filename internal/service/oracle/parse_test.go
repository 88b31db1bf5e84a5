package oracle

import (
	"errors"
	"testing"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/schema"
)

const validJSON = `{
  "scores": {"empathy": 20, "nvc_score": 35, "safety": 15},
  "diagnosis": "攻击性过强。",
  "advice": ["我注意到需求变更了多次（观察）。"],
  "segments": [{"text": "到底懂不懂", "type": "highlight_bad", "comment": "质疑能力", "offset": 9}]
}`

func TestExtractJSON_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"bare", validJSON},
		{"fenced json", "```json\n" + validJSON + "\n```"},
		{"fenced untagged", "```\n" + validJSON + "\n```"},
		{"prose before", "好的，以下是分析结果：\n" + validJSON},
		{"prose after", validJSON + "\n希望对你有帮助！"},
		{"prose both sides", "分析如下：" + validJSON + "（完）"},
		{"fence with prose", "结果：\n```json\n" + validJSON + "\n```\n以上。"},
		{"fence with inner prose", "```json\nHere you go: " + validJSON + " done\n```"},
	}

	v := schema.New("empathy", "nvc_score", "safety")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseAnalysis(tt.reply, v)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Scores["safety"] != 15 {
				t.Errorf("expected safety 15, got %d", r.Scores["safety"])
			}
			if len(r.Segments) != 1 || r.Segments[0].Text != "到底懂不懂" {
				t.Errorf("expected one segment, got %+v", r.Segments)
			}
			if r.Segments[0].Offset == nil || *r.Segments[0].Offset != 9 {
				t.Errorf("expected offset 9, got %v", r.Segments[0].Offset)
			}
		})
	}
}

func TestExtractJSON_Errors(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected error
	}{
		{"empty", "", ErrEmptyReply},
		{"whitespace", "  \n ", ErrEmptyReply},
		{"no braces", "抱歉，我无法分析这段内容。", ErrMalformed},
		{"reversed braces", "} oops {", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractJSON(tt.reply)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestExtractArray(t *testing.T) {
	got, err := ExtractArray("这里是场景：\n[{\"label\":\"加班\",\"prompt\":\"领导临时要求周末加班\"}]\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `[{"label":"加班","prompt":"领导临时要求周末加班"}]` {
		t.Errorf("unexpected array slice: %s", got)
	}
}

func TestParseAnalysis_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"broken json", `{"scores": {"empathy": 1,}`},
		{"missing segments", `{"scores":{"empathy":1,"nvc_score":2,"safety":3},"diagnosis":"d","advice":["a"]}`},
		{"missing diagnosis", `{"scores":{"empathy":1,"nvc_score":2,"safety":3},"advice":["a"],"segments":[]}`},
		{"missing score key", `{"scores":{"empathy":1},"diagnosis":"d","advice":["a"],"segments":[]}`},
		{"advice wrong shape", `{"scores":{"empathy":1,"nvc_score":2,"safety":3},"diagnosis":"d","advice":"a","segments":[]}`},
	}

	v := schema.New("empathy", "nvc_score", "safety")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseAnalysis(tt.reply, v)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
			if r != nil {
				t.Error("expected no partial result")
			}
		})
	}
}

func TestParseAnalysis_NormalizesSegmentTypes(t *testing.T) {
	reply := `{"scores":{"empathy":1,"nvc_score":2,"safety":3},"diagnosis":"d","advice":["a"],
	"segments":[{"text":"x","type":"good","comment":""},{"text":"y","type":"BAD","comment":""}]}`

	r, err := ParseAnalysis(reply, schema.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Segments[0].Type != models.HighlightGood {
		t.Errorf("expected highlight_good, got %s", r.Segments[0].Type)
	}
	if r.Segments[1].Type != models.HighlightBad {
		t.Errorf("expected highlight_bad, got %s", r.Segments[1].Type)
	}
}

func TestParseAnalysis_FractionalScores(t *testing.T) {
	reply := "评分如下：\n```json\n" +
		`{"scores":{"empathy":72.5,"nvc_score":40,"safety":59.6},"diagnosis":"d","advice":["a"],"segments":[]}` +
		"\n```"

	r, err := ParseAnalysis(reply, schema.New("empathy", "nvc_score", "safety"))
	if err != nil {
		t.Fatalf("expected fractional scores to parse, got %v", err)
	}
	if r.Scores["empathy"] != 73 || r.Scores["safety"] != 60 || r.Scores["nvc_score"] != 40 {
		t.Errorf("expected rounded scores 73/40/60, got %v", r.Scores)
	}
}
