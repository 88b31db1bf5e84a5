package report

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"eq-coach-service/internal/models"
	oraclemock "eq-coach-service/internal/service/oracle/mock"
	"eq-coach-service/internal/service/scenario"
	sttmock "eq-coach-service/internal/service/stt/mock"
	"eq-coach-service/internal/store"
)

func intPtr(n int) *int { return &n }

func joined(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

func highlighted(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if s.Highlighted() {
			out = append(out, s)
		}
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		segments   []models.Segment
		want       []string // highlighted text with type, in order
		wantStarts []int
	}{
		{
			name:       "no segments",
			transcript: "你好世界",
		},
		{
			name:       "single match",
			transcript: "你总是迟到，真烦",
			segments:   []models.Segment{{Text: "你总是迟到", Type: models.HighlightBad}},
			want:       []string{"highlight_bad:你总是迟到"},
			wantStarts: []int{0},
		},
		{
			name:       "duplicate text placed by offset",
			transcript: "好的好的",
			segments: []models.Segment{
				{Text: "好的", Type: models.HighlightBad, Offset: intPtr(2)},
				{Text: "好的", Type: models.HighlightGood, Offset: intPtr(0)},
			},
			want:       []string{"highlight_good:好的", "highlight_bad:好的"},
			wantStarts: []int{0, 2},
		},
		{
			name:       "duplicate text without offsets takes next unclaimed",
			transcript: "好的好的",
			segments: []models.Segment{
				{Text: "好的", Type: models.HighlightBad},
				{Text: "好的", Type: models.HighlightGood},
			},
			want:       []string{"highlight_bad:好的", "highlight_good:好的"},
			wantStarts: []int{0, 2},
		},
		{
			name:       "wrong offset falls back to search",
			transcript: "我们一起想办法",
			segments:   []models.Segment{{Text: "一起", Type: models.HighlightGood, Offset: intPtr(5)}},
			want:       []string{"highlight_good:一起"},
			wantStarts: []int{2},
		},
		{
			name:       "paraphrased segment dropped",
			transcript: "我有点不开心",
			segments: []models.Segment{
				{Text: "我很生气", Type: models.HighlightBad},
				{Text: "不开心", Type: models.HighlightBad},
			},
			want:       []string{"highlight_bad:不开心"},
			wantStarts: []int{3},
		},
		{
			name:       "overlap dropped",
			transcript: "我真的很生气",
			segments: []models.Segment{
				{Text: "很生气", Type: models.HighlightBad},
				{Text: "生气", Type: models.HighlightGood},
			},
			want:       []string{"highlight_bad:很生气"},
			wantStarts: []int{3},
		},
		{
			name:       "blank segment ignored",
			transcript: "谢谢你",
			segments:   []models.Segment{{Text: "  ", Type: models.HighlightGood}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := Reconcile(tt.transcript, tt.segments)
			if got := joined(spans); got != tt.transcript {
				t.Errorf("expected spans to rebuild %q, got %q", tt.transcript, got)
			}
			hs := highlighted(spans)
			if len(hs) != len(tt.want) {
				t.Fatalf("expected %d highlighted spans, got %d", len(tt.want), len(hs))
			}
			for i, h := range hs {
				got := string(h.Segment.Type) + ":" + h.Text
				if got != tt.want[i] {
					t.Errorf("span %d: expected %s, got %s", i, tt.want[i], got)
				}
				if h.Start != tt.wantStarts[i] {
					t.Errorf("span %d: expected start %d, got %d", i, tt.wantStarts[i], h.Start)
				}
			}
		})
	}
}

func TestReconcile_SpansAreContiguous(t *testing.T) {
	spans := Reconcile(sttmock.DefaultTranscript, oraclemock.CannedResult.Segments)

	pos := 0
	for i, s := range spans {
		if s.Start != pos {
			t.Errorf("span %d: expected start %d, got %d", i, pos, s.Start)
		}
		if s.End-s.Start != utf8.RuneCountInString(s.Text) {
			t.Errorf("span %d: bounds %d..%d do not match text %q", i, s.Start, s.End, s.Text)
		}
		pos = s.End
	}
	if pos != utf8.RuneCountInString(sttmock.DefaultTranscript) {
		t.Errorf("expected spans to cover the transcript, ended at %d", pos)
	}
	if n := len(highlighted(spans)); n != 4 {
		t.Errorf("expected 4 highlighted spans, got %d", n)
	}
}

func TestReconcile_Empty(t *testing.T) {
	if spans := Reconcile("", []models.Segment{{Text: "a"}}); spans != nil {
		t.Errorf("expected no spans for empty transcript, got %v", spans)
	}
}

func TestExtractScenario(t *testing.T) {
	composed := scenario.Compose("职场嘴替", "甲方改需求", "你好，我想聊聊")
	prefix := strings.TrimSuffix(composed, "你好，我想聊聊")

	tests := []struct {
		name       string
		text       string
		wantLabel  string
		wantSpeech string
		wantOffset int
	}{
		{"composed", composed, "职场嘴替", "你好，我想聊聊", utf8.RuneCountInString(prefix)},
		{"label only", scenario.Compose("拒绝背锅", "", "这不是我的错"), "拒绝背锅", "这不是我的错", utf8.RuneCountInString("【当前场景：拒绝背锅】用户发言：")},
		{"plain", "  你好世界", "", "你好世界", 2},
		{"tag without speech marker", "【当前场景：拒绝背锅】我不同意", "拒绝背锅", "我不同意", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractScenario(tt.text)
			if got.Label != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, got.Label)
			}
			if got.Speech != tt.wantSpeech {
				t.Errorf("expected speech %q, got %q", tt.wantSpeech, got.Speech)
			}
			if got.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, got.Offset)
			}
		})
	}
}

func TestFormulaSteps(t *testing.T) {
	clean, steps := FormulaSteps(oraclemock.CannedResult.Advice[0])

	if strings.ContainsAny(clean, "（）") {
		t.Errorf("expected labels removed, got %q", clean)
	}
	want := []Step{
		{Label: "观察", Content: "我注意到这周你迟到了三次"},
		{Label: "感受", Content: "我有些担心项目进度"},
		{Label: "需求", Content: "因为我需要团队协作顺畅"},
		{Label: "请求", Content: "你能告诉我最近是不是遇到了什么困难吗"},
	}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("expected steps %v, got %v", want, steps)
	}
}

func TestFormulaSteps_NoLabels(t *testing.T) {
	clean, steps := FormulaSteps("  直接说出你的感受就好。 ")
	if clean != "直接说出你的感受就好。" {
		t.Errorf("expected trimmed rewrite, got %q", clean)
	}
	if len(steps) != 0 {
		t.Errorf("expected no steps, got %v", steps)
	}
}

func TestBuild_ShiftsOffsetsPastScenarioTag(t *testing.T) {
	composed := scenario.Compose("职场嘴替", "同事迟到", sttmock.DefaultTranscript)
	shift := utf8.RuneCountInString(composed) - utf8.RuneCountInString(sttmock.DefaultTranscript)

	r := oraclemock.CannedResult.Clone()
	r.OriginalTranscript = composed
	for i := range r.Segments {
		off := *r.Segments[i].Offset + shift
		r.Segments[i].Offset = &off
	}

	v := Build(r)

	if v.Scenario != "职场嘴替" {
		t.Errorf("expected scenario '职场嘴替', got %q", v.Scenario)
	}
	if v.Transcript != sttmock.DefaultTranscript {
		t.Errorf("expected spoken text only, got %q", v.Transcript)
	}
	hs := highlighted(v.Spans)
	wantStarts := []int{0, 6, 20, 32}
	if len(hs) != len(wantStarts) {
		t.Fatalf("expected %d highlights, got %d", len(wantStarts), len(hs))
	}
	for i, h := range hs {
		if h.Start != wantStarts[i] {
			t.Errorf("highlight %d: expected start %d, got %d", i, wantStarts[i], h.Start)
		}
	}
	if v.Dropped != 0 {
		t.Errorf("expected no dropped segments, got %d", v.Dropped)
	}
}

func TestBuild_Sections(t *testing.T) {
	r := oraclemock.CannedResult.Clone()
	r.OriginalTranscript = sttmock.DefaultTranscript
	r.Segments = append(r.Segments, models.Segment{Text: "完全没说过的话", Type: models.HighlightBad})

	v := Build(r)

	if len(v.Scores) != 3 || v.Scores[0].Key != "empathy" || v.Scores[0].Label != "同理心" {
		t.Errorf("expected sorted labelled scores, got %v", v.Scores)
	}
	if v.Dropped != 1 {
		t.Errorf("expected 1 dropped segment, got %d", v.Dropped)
	}
	if len(v.Steps) != 4 {
		t.Errorf("expected 4 formula steps, got %d", len(v.Steps))
	}
	if len(v.Tips) != 2 {
		t.Errorf("expected 2 tips, got %d", len(v.Tips))
	}
	if v.Scenario != "" {
		t.Errorf("expected no scenario, got %q", v.Scenario)
	}
}

func TestBuild_NoTranscript(t *testing.T) {
	v := Build(&models.AnalysisResult{Advice: []string{"试试先说感受"}})
	if v.Transcript != NoTranscript {
		t.Errorf("expected placeholder transcript, got %q", v.Transcript)
	}
	if len(v.Spans) != 1 || v.Spans[0].Highlighted() {
		t.Errorf("expected a single plain span, got %v", v.Spans)
	}
	if v.Rewrite != "试试先说感受" {
		t.Errorf("expected rewrite, got %q", v.Rewrite)
	}

	if v := Build(nil); v.Transcript != NoTranscript {
		t.Errorf("expected placeholder for nil result, got %q", v.Transcript)
	}
}

func TestStoredResultRendersIdentically(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "coach.sqlite"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	r := oraclemock.CannedResult.Clone()
	r.OriginalTranscript = sttmock.DefaultTranscript
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if !reflect.DeepEqual(Build(r), Build(loaded)) {
		t.Error("expected identical views before and after storage")
	}

	var before, after bytes.Buffer
	if err := Render(&before, Build(r)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if err := Render(&after, Build(loaded)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if before.String() != after.String() {
		t.Error("expected identical rendered reports")
	}
}

func TestRender(t *testing.T) {
	r := oraclemock.CannedResult.Clone()
	r.OriginalTranscript = scenario.Compose("职场嘴替", "", sttmock.DefaultTranscript)

	var buf bytes.Buffer
	if err := Render(&buf, Build(r)); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"职场嘴替",
		"表达中带有指责和评判",
		"建议：「总是」是绝对化评判",
		"亮点：以观察开头",
		"Step 1: 观察",
		"更多技巧",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}
