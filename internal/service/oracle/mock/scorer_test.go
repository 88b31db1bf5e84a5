package mock

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/service/oracle"
	sttmock "eq-coach-service/internal/service/stt/mock"
)

func TestScorer_Idempotent(t *testing.T) {
	s := NewScorer(0)
	ctx := context.Background()

	first, err := s.Score(ctx, "同样的输入", models.ModeWork)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Scores["empathy"] = 0
	first.Segments = nil

	second, err := s.Score(ctx, "同样的输入", models.ModeWork)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(second, CannedResult.Clone()) {
		t.Error("expected mutation of one result not to leak into the next")
	}
	if s.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", s.Calls())
	}
}

func TestScorer_WithResultAndError(t *testing.T) {
	want := &models.AnalysisResult{
		Scores:    map[string]int{"logic": 70},
		Diagnosis: "结论后置",
		Advice:    []string{"先说结论"},
	}
	s := NewScorerWithResult(want)

	got, err := s.Score(context.Background(), "text", models.ModeWork)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	s.Err = oracle.ErrNotConfigured
	if _, err := s.Score(context.Background(), "text", models.ModeWork); !errors.Is(err, oracle.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestScorer_DelayHonoursContext(t *testing.T) {
	s := NewScorer(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Score(ctx, "text", models.ModeWork); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCannedResult_SegmentsMatchDefaultTranscript(t *testing.T) {
	runes := []rune(sttmock.DefaultTranscript)
	for _, seg := range CannedResult.Segments {
		if !strings.Contains(sttmock.DefaultTranscript, seg.Text) {
			t.Errorf("segment %q not in default transcript", seg.Text)
			continue
		}
		start := *seg.Offset
		end := start + len([]rune(seg.Text))
		if end > len(runes) || string(runes[start:end]) != seg.Text {
			t.Errorf("segment %q offset %d does not point at its text", seg.Text, start)
		}
	}
}

func TestCompleter(t *testing.T) {
	c := NewCompleter("[]")
	reply, err := c.Complete(context.Background(), oraclePrompt("hi"))
	if err != nil || reply != "[]" {
		t.Errorf("expected [] reply, got %q (%v)", reply, err)
	}
	if c.Calls() != 1 || c.Prompts()[0].User != "hi" {
		t.Errorf("expected recorded prompt, got %+v", c.Prompts())
	}
}

func oraclePrompt(user string) oracle.Prompt {
	return oracle.Prompt{User: user}
}
