package mock

import (
	"context"

	"eq-coach-service/internal/service/stt"
)

// DefaultTranscript is returned for every recording in mock mode.
const DefaultTranscript = "你总是迟到，我注意到项目进度受到了影响。你能理解一下我的压力吗？我们一起想想办法好吗？"

// Transcriber implements stt.Transcriber with a fixed transcript.
type Transcriber struct {
	Text string
	Err  error
}

// NewTranscriber returns a transcriber that always yields DefaultTranscript.
func NewTranscriber() *Transcriber {
	return &Transcriber{Text: DefaultTranscript}
}

// Transcribe ignores the audio and returns the configured text.
func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}
