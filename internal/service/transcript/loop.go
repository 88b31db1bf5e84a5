package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/service/stt"
)

// RestartPolicy bounds the automatic restart of a recognizer that ends on its own.
type RestartPolicy struct {
	MaxConsecutive  int           // Immediate failures tolerated before giving up
	BaseDelay       time.Duration // Backoff after the first immediate failure
	MaxDelay        time.Duration // Backoff ceiling
	ImmediateWindow time.Duration // A session ending sooner than this with no results is a failure
}

// DefaultRestartPolicy returns the policy used when none is configured.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		MaxConsecutive:  5,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        4 * time.Second,
		ImmediateWindow: time.Second,
	}
}

// Backoff returns the delay before the restart following n consecutive
// immediate failures. A healthy passive end (n == 0) restarts at once.
func (p RestartPolicy) Backoff(n int) time.Duration {
	if n <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// LoopState is the state of a recognition loop.
type LoopState int

const (
	LoopIdle LoopState = iota
	LoopListening
	LoopRestarting
	// LoopUnavailable is terminal: recognition failed repeatedly and was given up.
	LoopUnavailable
	LoopStopped
)

// String returns the string representation of the state.
func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "IDLE"
	case LoopListening:
		return "LISTENING"
	case LoopRestarting:
		return "RESTARTING"
	case LoopUnavailable:
		return "UNAVAILABLE"
	case LoopStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors reported by the loop.
var (
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")
	ErrLoopNotIdle            = errors.New("recognition loop already started")
	ErrAudioLimitExceeded     = errors.New("recording audio limit exceeded")
)

// UpdateCallback receives the transcript after every applied event.
type UpdateCallback func(confirmed, preview string)

// UnavailableCallback is invoked once when the loop gives up.
type UnavailableCallback func(err error)

// Loop keeps a recognizer running for the duration of a recording and feeds
// its results into an Accumulator. A recognizer that ends passively is
// restarted transparently; consecutive immediate failures are retried with
// exponential backoff up to the policy limit, after which the loop becomes
// unavailable.
type Loop struct {
	recognizer stt.Recognizer
	acc        *Accumulator
	policy     RestartPolicy
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	// MaxAudioBytes caps audio forwarded per recording; zero disables the cap.
	MaxAudioBytes int64

	mu            sync.Mutex
	ctx           context.Context
	state         LoopState
	gen           uint64 // current recognizer session; stale callbacks are ignored
	startedAt     time.Time
	gotResult     bool
	failures      int
	restarts      int
	audioBytes    int64
	lastErr       error
	timer         *time.Timer
	onUpdate      UpdateCallback
	onUnavailable UnavailableCallback
}

// NewLoop creates a loop with the default restart policy.
func NewLoop(recognizer stt.Recognizer, acc *Accumulator) *Loop {
	return NewLoopWithPolicy(recognizer, acc, DefaultRestartPolicy())
}

// NewLoopWithPolicy creates a loop with a custom restart policy.
func NewLoopWithPolicy(recognizer stt.Recognizer, acc *Accumulator, policy RestartPolicy) *Loop {
	return &Loop{
		recognizer: recognizer,
		acc:        acc,
		policy:     policy,
		metrics:    metrics.DefaultMetrics,
		logger:     logging.WithComponent("recognition"),
		state:      LoopIdle,
	}
}

// SetLogger replaces the loop's logger.
func (l *Loop) SetLogger(logger zerolog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// SetUpdateCallback sets the callback invoked after each applied event.
func (l *Loop) SetUpdateCallback(cb UpdateCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onUpdate = cb
}

// SetUnavailableCallback sets the callback invoked when recognition is given up.
func (l *Loop) SetUnavailableCallback(cb UnavailableCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onUnavailable = cb
}

// Start begins recognition. The loop can be started once.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != LoopIdle {
		l.mu.Unlock()
		return ErrLoopNotIdle
	}
	l.ctx = ctx
	l.state = LoopListening
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	return l.launch(gen)
}

// launch starts the recognizer for session gen. A Start error counts as an
// immediate failure and goes through the restart policy.
func (l *Loop) launch(gen uint64) error {
	l.mu.Lock()
	if gen != l.gen || (l.state != LoopListening && l.state != LoopRestarting) {
		l.mu.Unlock()
		return nil
	}
	l.state = LoopListening
	l.startedAt = time.Now()
	l.gotResult = false
	ctx := l.ctx
	l.mu.Unlock()

	err := l.recognizer.Start(ctx, &sessionCallback{loop: l, gen: gen})
	if err != nil {
		l.terminated(gen, fmt.Errorf("start recognizer: %w", err), true)
	}
	return nil
}

// SendAudio forwards an audio frame while the loop is listening.
// Frames arriving during a restart gap are dropped.
func (l *Loop) SendAudio(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	if l.state != LoopListening {
		l.mu.Unlock()
		return nil
	}
	l.audioBytes += int64(len(frame))
	if l.MaxAudioBytes > 0 && l.audioBytes > l.MaxAudioBytes {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", ErrAudioLimitExceeded, l.audioBytes, l.MaxAudioBytes)
	}
	l.mu.Unlock()

	return l.recognizer.SendAudio(ctx, frame)
}

// Stop ends recognition and cancels any pending restart. Idempotent.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.state == LoopStopped {
		l.mu.Unlock()
		return nil
	}
	l.state = LoopStopped
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	return l.recognizer.Close()
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Restarts returns how many times the recognizer was restarted.
func (l *Loop) Restarts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restarts
}

// LastError returns the most recent recognizer error, if any.
func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loop) result(gen uint64, ev stt.Event) {
	l.mu.Lock()
	if gen != l.gen || l.state != LoopListening {
		l.mu.Unlock()
		return
	}
	if !ev.Empty() {
		l.gotResult = true
		l.failures = 0
	}
	cb := l.onUpdate
	l.mu.Unlock()

	if !l.acc.Apply(ev) {
		return
	}
	l.metrics.RecordFinalTranscripts(len(ev.Finals))
	if ev.Interim != "" {
		l.metrics.RecordInterimTranscript()
	}
	if cb != nil {
		cb(l.acc.Confirmed(), l.acc.Preview())
	}
}

// terminated handles the end of recognizer session gen, whether passive
// (err == nil) or failed.
func (l *Loop) terminated(gen uint64, err error, startFailed bool) {
	l.mu.Lock()
	if gen != l.gen || l.state != LoopListening {
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.lastErr = err
	}

	elapsed := time.Since(l.startedAt)
	immediate := startFailed || (!l.gotResult && elapsed < l.policy.ImmediateWindow)
	if immediate {
		l.failures++
	} else {
		l.failures = 0
	}

	if immediate && l.failures >= l.policy.MaxConsecutive {
		l.state = LoopUnavailable
		l.gen++
		failures := l.failures
		cb := l.onUnavailable
		logger := l.logger
		l.mu.Unlock()

		l.recognizer.Close()
		l.metrics.RecordRecognitionUnavailable()
		logger.Warn().
			Err(err).
			Int("consecutiveFailures", failures).
			Msg("Speech recognition given up")

		if cb != nil {
			if err != nil {
				cb(fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err))
			} else {
				cb(ErrRecognitionUnavailable)
			}
		}
		return
	}

	l.state = LoopRestarting
	l.gen++
	next := l.gen
	l.restarts++
	delay := l.policy.Backoff(l.failures)
	l.timer = time.AfterFunc(delay, func() { l.launch(next) })
	logger := l.logger
	failures := l.failures
	l.mu.Unlock()

	l.metrics.RecordRecognitionRestart()
	logger.Debug().
		Err(err).
		Bool("immediate", immediate).
		Int("consecutiveFailures", failures).
		Dur("delay", delay).
		Dur("sessionDuration", elapsed).
		Msg("Restarting speech recognition")
}

// sessionCallback binds recognizer callbacks to one recognizer session.
type sessionCallback struct {
	loop *Loop
	gen  uint64
}

func (c *sessionCallback) OnResult(ev stt.Event) {
	c.loop.result(c.gen, ev)
}

func (c *sessionCallback) OnEnd() {
	c.loop.terminated(c.gen, nil, false)
}

func (c *sessionCallback) OnError(err error) {
	c.loop.terminated(c.gen, err, false)
}
