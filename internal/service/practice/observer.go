package practice

import (
	"eq-coach-service/internal/models"
	"eq-coach-service/internal/service/session"
)

// NoticeKind identifies a user-facing notice.
type NoticeKind string

const (
	NoticeTooBrief               NoticeKind = "too_brief"
	NoticeNoSpeech               NoticeKind = "no_speech"
	NoticeTooShort               NoticeKind = "too_short"
	NoticeSubmitFailed           NoticeKind = "submit_failed"
	NoticeCaptureFailed          NoticeKind = "capture_failed"
	NoticeRecognitionUnavailable NoticeKind = "recognition_unavailable"
	NoticeMaxDuration            NoticeKind = "max_duration"
)

const (
	msgTooBrief               = "说话时间太短啦，请至少说 %d 秒哦！"
	msgNoSpeech               = "似乎没有识别到任何说话内容，请大声一点哦。"
	msgTooShort               = "听不太清，或者内容太短了，请再试一次吧！"
	msgSubmitFailed           = "分析失败，请稍后重试"
	msgRecognitionUnavailable = "实时字幕暂时不可用，可以继续说完再提交"
	msgMaxDuration            = "已达到最长录音时间，自动提交分析"
)

// Notice is a message for the user. Cause is set for capture failures.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Cause   Cause      `json:"cause,omitempty"`
}

// Observer receives controller updates. Methods may be called from any
// goroutine and should return quickly.
type Observer interface {
	OnState(from, to session.State)
	OnTranscript(confirmed, preview string)
	OnNotice(n Notice)
	OnResult(r *models.AnalysisResult)
}

type nopObserver struct{}

func (nopObserver) OnState(from, to session.State)         {}
func (nopObserver) OnTranscript(confirmed, preview string) {}
func (nopObserver) OnNotice(n Notice)                      {}
func (nopObserver) OnResult(r *models.AnalysisResult)      {}
