// Package mock provides canned oracles for offline development and tests.
package mock

import (
	"context"
	"sync"
	"time"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/service/oracle"
)

func intPtr(n int) *int { return &n }

// CannedResult is returned by Scorer in mock mode.
var CannedResult = models.AnalysisResult{
	Scores: map[string]int{
		"empathy":   55,
		"nvc_score": 40,
		"safety":    60,
	},
	Diagnosis: "表达中带有指责和评判，容易让对方产生防御心理。",
	PrepAnalysis: &models.PrepAnalysis{
		PointDetected:      true,
		ConclusionPosition: "end",
	},
	Advice: []string{
		"✨ 高情商重写版本：我注意到这周你迟到了三次（观察），我有些担心项目进度（感受），因为我需要团队协作顺畅（需求），你能告诉我最近是不是遇到了什么困难吗？（请求）",
		"避免使用「总是」「从来」这类绝对化的词，它们会让对方觉得被全盘否定。",
		"先描述具体事实，再表达自己的感受和需要，最后提出一个对方可以做到的请求。",
	},
	Segments: []models.Segment{
		{Text: "你总是迟到", Type: models.HighlightBad, Comment: "「总是」是绝对化评判，容易引发对方的防御", Offset: intPtr(0)},
		{Text: "我注意到项目进度受到了影响", Type: models.HighlightGood, Comment: "以观察开头，陈述事实而非指责", Offset: intPtr(6)},
		{Text: "你能理解一下我的压力吗", Type: models.HighlightBad, Comment: "反问式求理解，隐含着对方不体谅自己的指责", Offset: intPtr(20)},
		{Text: "我们一起想想办法好吗", Type: models.HighlightGood, Comment: "用「我们」邀请合作，语气温和", Offset: intPtr(32)},
	},
}

// Scorer implements oracle.Scorer with a fixed result. Every call returns a
// fresh copy, so repeated calls are indistinguishable.
type Scorer struct {
	mu     sync.Mutex
	calls  int
	result *models.AnalysisResult

	// Delay simulates oracle latency; it honours context cancellation.
	Delay time.Duration
	// Err, when set, is returned instead of the result.
	Err error
}

// NewScorer creates a scorer returning CannedResult after delay.
func NewScorer(delay time.Duration) *Scorer {
	return &Scorer{result: &CannedResult, Delay: delay}
}

// NewScorerWithResult creates a scorer returning r.
func NewScorerWithResult(r *models.AnalysisResult) *Scorer {
	return &Scorer{result: r}
}

// Score implements oracle.Scorer.
func (s *Scorer) Score(ctx context.Context, text string, mode models.Mode) (*models.AnalysisResult, error) {
	s.mu.Lock()
	s.calls++
	delay, err, result := s.Delay, s.Err, s.result
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// Calls returns how many times Score was called.
func (s *Scorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ oracle.Scorer = (*Scorer)(nil)
