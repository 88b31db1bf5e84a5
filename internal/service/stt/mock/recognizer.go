// Package mock provides mock STT oracles for running without cloud credentials.
// The recognizer simulates browser-style recognition: progressive interim
// results, one finalized chunk per utterance, then a passive end of session
// once the speaker falls silent.
package mock

import (
	"context"
	"sync"
	"time"

	"eq-coach-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Interims []string // Progressive interim transcripts
	Final    string   // Finalized chunk
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Interims: []string{"我觉得", "我觉得你最近", "我觉得你最近总是"},
		Final:    "我觉得你最近总是迟到，",
	},
	{
		Interims: []string{"这让我", "这让我很难"},
		Final:    "这让我很难安排团队的工作。",
	},
	{
		Interims: []string{"你能", "你能告诉我"},
		Final:    "你能告诉我是不是遇到了什么困难吗？",
	},
}

// Recognizer implements stt.Recognizer with scripted responses.
type Recognizer struct {
	mu         sync.Mutex
	cb         stt.Callback
	utterances []SimulatedUtterance
	current    int // utterance being spoken
	interimIdx int // next interim to send
	started    int // number of Start calls
	closed     bool

	// Delay is applied before each callback; zero delivers synchronously.
	Delay time.Duration
	// EndAfterUtterance makes the session end passively after each final.
	EndAfterUtterance bool
	// EndOnStart ends every session immediately, as a broken capability would.
	EndOnStart bool
	// StartErr, when set, is returned by Start.
	StartErr error
}

// New creates a mock recognizer cycling through DefaultUtterances.
func New() *Recognizer {
	return NewWithUtterances(DefaultUtterances, 50*time.Millisecond)
}

// NewWithUtterances creates a mock recognizer with a custom script.
func NewWithUtterances(utterances []SimulatedUtterance, delay time.Duration) *Recognizer {
	return &Recognizer{
		utterances:        utterances,
		Delay:             delay,
		EndAfterUtterance: true,
	}
}

// Start begins (or resumes) a mock recognition session.
func (r *Recognizer) Start(ctx context.Context, cb stt.Callback) error {
	r.mu.Lock()
	if r.StartErr != nil {
		err := r.StartErr
		r.mu.Unlock()
		return err
	}
	r.cb = cb
	r.closed = false
	r.started++
	endNow := r.EndOnStart
	r.mu.Unlock()

	if endNow {
		r.deliver(func(cb stt.Callback) { cb.OnEnd() })
	}
	return nil
}

// SendAudio advances the script by one step per audio frame.
func (r *Recognizer) SendAudio(ctx context.Context, audio []byte) error {
	r.mu.Lock()
	if r.closed || r.cb == nil || len(r.utterances) == 0 || r.EndOnStart {
		r.mu.Unlock()
		return nil
	}

	utt := r.utterances[r.current%len(r.utterances)]
	if r.interimIdx < len(utt.Interims) {
		text := utt.Interims[r.interimIdx]
		r.interimIdx++
		r.mu.Unlock()
		r.deliver(func(cb stt.Callback) { cb.OnResult(stt.Event{Interim: text}) })
		return nil
	}

	// All interims sent: the utterance completes.
	r.current++
	r.interimIdx = 0
	endAfter := r.EndAfterUtterance
	if endAfter {
		r.closed = true
	}
	r.mu.Unlock()

	r.deliver(func(cb stt.Callback) {
		cb.OnResult(stt.Event{Finals: []string{utt.Final}})
		if endAfter {
			cb.OnEnd()
		}
	})
	return nil
}

// Close ends the mock session. No further callbacks are delivered.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cb = nil
	return nil
}

// Starts returns how many times Start was called.
func (r *Recognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Recognizer) deliver(fn func(cb stt.Callback)) {
	r.mu.Lock()
	cb := r.cb
	delay := r.Delay
	r.mu.Unlock()
	if cb == nil {
		return
	}

	if delay == 0 {
		fn(cb)
		return
	}
	go func() {
		time.Sleep(delay)
		r.mu.Lock()
		live := r.cb != nil
		r.mu.Unlock()
		if live {
			fn(cb)
		}
	}()
}
