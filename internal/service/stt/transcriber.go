package stt

import (
	"context"
	"errors"
)

// Audio is an uploaded recording.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcriber turns a complete recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// ErrUnavailable is returned when the transcription backend cannot be reached.
var ErrUnavailable = errors.New("transcription service unavailable")
