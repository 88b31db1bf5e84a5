// Package stt defines the speech-to-text oracles: streaming recognizers that
// feed a live transcript and batch transcribers for uploaded audio.
package stt

import "context"

// Event is one incremental recognition result: zero or more finalized chunks,
// in order, plus at most one interim chunk covering speech since the last final.
type Event struct {
	Finals  []string
	Interim string
}

// Empty reports whether the event carries no text at all.
func (e Event) Empty() bool {
	return len(e.Finals) == 0 && e.Interim == ""
}

// Callback receives recognition results from a Recognizer.
type Callback interface {
	// OnResult is called for every incremental recognition event, in delivery order.
	OnResult(ev Event)

	// OnEnd is called when the recognition session terminates passively
	// (silence timeout, provider stream limit) without an error.
	OnEnd()

	// OnError is called when the recognition session fails.
	OnError(err error)
}

// Recognizer is a streaming recognition session (Google, browser, mock).
type Recognizer interface {
	// Start begins a recognition session delivering results to cb.
	// Start may be called again after OnEnd to resume recognition.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}
