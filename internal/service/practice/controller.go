// Package practice drives one practice attempt: microphone capture, live
// recognition, local guardrails, submission and hand-off of the result.
package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/service/session"
	"eq-coach-service/internal/service/stt"
	"eq-coach-service/internal/service/transcript"
	"eq-coach-service/internal/store"
)

var (
	// ErrTooBrief is returned when recording stopped before the minimum duration.
	ErrTooBrief = errors.New("recording too brief")
	// ErrNoSpeech is returned when nothing was transcribed; recording continues.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrAbandoned is returned by StartRecording when the attempt was cancelled
	// or closed before capture was set up. Anything acquired is released.
	ErrAbandoned = fmt.Errorf("%w: recording abandoned while starting", session.ErrInvalidTransition)
)

// Outcomes recorded per attempt.
const (
	OutcomeSucceeded     = "succeeded"
	OutcomeTooBrief      = "too_brief"
	OutcomeNoSpeech      = "no_speech"
	OutcomeTooShort      = "too_short"
	OutcomeFailed        = "failed"
	OutcomeCaptureFailed = "capture_failed"
	OutcomeCancelled     = "cancelled"
)

// RecognizerFactory creates the recognizer for one recording.
type RecognizerFactory func(ctx context.Context) (stt.Recognizer, error)

// Config holds the per-session settings.
type Config struct {
	Mode           models.Mode
	ScenarioLabel  string
	ScenarioPrompt string

	MinDuration time.Duration
	// MaxDuration auto-finishes a recording; zero disables the ceiling.
	MaxDuration time.Duration
	// ThinkingDuration is the pre-roll used by Begin; zero starts recording at once.
	ThinkingDuration time.Duration
	Restart          transcript.RestartPolicy
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		Mode:             models.DefaultMode,
		MinDuration:      2 * time.Second,
		MaxDuration:      120 * time.Second,
		ThinkingDuration: 30 * time.Second,
		Restart:          transcript.DefaultRestartPolicy(),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore saves every successful result into s.
func WithStore(s store.ResultStore) Option {
	return func(c *Controller) { c.store = s }
}

// WithObserver receives state, transcript, notice and result updates.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock overrides the time source used for duration guardrails.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller runs the recording session state machine for one practice session.
// Every state change goes through the session.Machine; microphone and
// recognizer are owned by the controller and released on every exit from
// RECORDING.
type Controller struct {
	machine       *session.Machine
	mic           Microphone
	newRecognizer RecognizerFactory
	submitter     Submitter
	store         store.ResultStore
	observer      Observer
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time

	mu         sync.Mutex
	cfg        Config
	attempt    uint64 // bumped by every start and teardown
	abort      context.CancelFunc
	acc        *transcript.Accumulator
	loop       *transcript.Loop
	stream     Stream
	cancel     context.CancelFunc
	startedAt  time.Time
	thinkTimer *time.Timer
	ceilTimer  *time.Timer
	captureErr *CaptureError
	result     *models.AnalysisResult
}

// NewController creates a controller in IDLE.
func NewController(sessionID string, cfg Config, mic Microphone, recognizers RecognizerFactory, submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		machine:       session.NewMachine(sessionID),
		mic:           mic,
		newRecognizer: recognizers,
		submitter:     submitter,
		observer:      nopObserver{},
		metrics:       metrics.DefaultMetrics,
		logger:        logging.WithSession(sessionID, string(cfg.Mode)),
		now:           time.Now,
		cfg:           cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine.OnTransition(func(from, to session.State, ev session.Event) {
		c.logger.Debug().
			Str("from", from.String()).
			Str("to", to.String()).
			Str("event", ev.String()).
			Msg("Session transition")
		c.observer.OnState(from, to)
	})
	return c
}

// SessionID returns the session ID.
func (c *Controller) SessionID() string {
	return c.machine.SessionId()
}

// State returns the current session state.
func (c *Controller) State() session.State {
	return c.machine.State()
}

// SetScenario sets the scenario attached to the next submission.
func (c *Controller) SetScenario(mode models.Mode, label, prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Mode = mode
	c.cfg.ScenarioLabel = label
	c.cfg.ScenarioPrompt = prompt
}

// Begin enters the thinking pre-roll. Recording starts when it expires or
// when StartRecording is called.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	d := c.cfg.ThinkingDuration
	c.mu.Unlock()
	if d <= 0 {
		return c.StartRecording(ctx)
	}

	if _, err := c.machine.Fire(session.EventBegin); err != nil {
		return err
	}
	c.mu.Lock()
	c.thinkTimer = time.AfterFunc(d, func() { c.thinkingExpired(ctx) })
	c.mu.Unlock()
	return nil
}

func (c *Controller) thinkingExpired(ctx context.Context) {
	if c.machine.State() != session.StateThinking {
		return
	}
	if err := c.StartRecording(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Recording did not start after thinking")
	}
}

// StartRecording acquires the microphone and starts live recognition.
// A capture failure returns the session to IDLE with a cause-specific notice.
// Cancel or Close while the microphone is being acquired abandons the attempt:
// a pending Acquire is aborted and a late stream is released at once.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.stopThinking()
	if _, err := c.machine.Fire(session.EventStart); err != nil {
		return err
	}

	acquireCtx, abort := context.WithCancel(ctx)
	defer abort()
	c.mu.Lock()
	c.attempt++
	attempt := c.attempt
	c.abort = abort
	c.mu.Unlock()

	stream, err := c.mic.Acquire(acquireCtx)
	if err != nil {
		if !c.current(attempt) {
			return ErrAbandoned
		}
		ce := AsCaptureError(err)
		c.mu.Lock()
		c.captureErr = ce
		c.abort = nil
		c.mu.Unlock()
		c.metrics.RecordCaptureFailure(string(ce.Cause))
		c.metrics.RecordOutcome(OutcomeCaptureFailed)
		c.logger.Warn().Str("cause", string(ce.Cause)).Err(ce.Err).Msg("Microphone acquisition failed")
		c.fire(session.EventCaptureFailed)
		c.observer.OnNotice(Notice{Kind: NoticeCaptureFailed, Cause: ce.Cause, Message: ce.Message()})
		return ce
	}
	if !c.current(attempt) {
		c.release(stream, nil)
		return ErrAbandoned
	}

	rec, err := c.newRecognizer(ctx)
	if err != nil {
		c.release(stream, nil)
		if !c.current(attempt) {
			return ErrAbandoned
		}
		c.metrics.RecordOutcome(OutcomeCaptureFailed)
		c.logger.Error().Err(err).Msg("Failed to create recognizer")
		c.fire(session.EventCaptureFailed)
		c.observer.OnNotice(Notice{Kind: NoticeRecognitionUnavailable, Message: msgRecognitionUnavailable})
		return fmt.Errorf("create recognizer: %w", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)
	acc := transcript.NewAccumulator()

	c.mu.Lock()
	if attempt != c.attempt || c.machine.State() != session.StateRecording {
		c.mu.Unlock()
		cancel()
		c.release(stream, rec)
		return ErrAbandoned
	}
	loop := transcript.NewLoopWithPolicy(rec, acc, c.cfg.Restart)
	loop.SetLogger(c.logger)
	loop.SetUpdateCallback(func(confirmed, preview string) {
		c.observer.OnTranscript(confirmed, preview)
	})
	loop.SetUnavailableCallback(func(err error) {
		c.logger.Warn().Err(err).Msg("Live recognition unavailable")
		c.observer.OnNotice(Notice{Kind: NoticeRecognitionUnavailable, Message: msgRecognitionUnavailable})
	})
	c.abort = nil
	c.captureErr = nil
	c.result = nil
	c.acc = acc
	c.loop = loop
	c.stream = stream
	c.cancel = cancel
	c.startedAt = c.now()
	if c.cfg.MaxDuration > 0 {
		c.ceilTimer = time.AfterFunc(c.cfg.MaxDuration, func() { c.ceilingReached(ctx) })
	}
	c.mu.Unlock()

	// Installed: from here only a teardown can end the attempt, and every
	// teardown bumps c.attempt.
	if err := loop.Start(captureCtx); err != nil {
		if !c.installed(attempt) {
			rec.Close()
			return ErrAbandoned
		}
		c.teardown()
		c.fire(session.EventCaptureFailed)
		return fmt.Errorf("start recognition: %w", err)
	}
	if !c.installed(attempt) {
		// Torn down while recognition was starting.
		rec.Close()
		return ErrAbandoned
	}
	go c.pump(captureCtx, stream, loop)

	c.logger.Info().Msg("Recording started")
	return nil
}

// current reports whether attempt is still the live recording.
func (c *Controller) current(attempt uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return attempt == c.attempt && c.machine.State() == session.StateRecording
}

// installed reports whether the attempt installed by StartRecording has not
// been torn down since.
func (c *Controller) installed(attempt uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return attempt == c.attempt
}

// release closes capture resources that were never handed to the controller.
func (c *Controller) release(stream Stream, rec stt.Recognizer) {
	if rec != nil {
		if err := rec.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to close recognizer")
		}
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to release microphone")
		}
	}
}

func (c *Controller) ceilingReached(ctx context.Context) {
	if c.machine.State() != session.StateRecording {
		return
	}
	c.observer.OnNotice(Notice{Kind: NoticeMaxDuration, Message: msgMaxDuration})
	if _, err := c.Finish(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Automatic finish did not complete")
	}
}

// pump forwards microphone frames to recognition until capture ends.
func (c *Controller) pump(ctx context.Context, stream Stream, loop *transcript.Loop) {
	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				c.captureLost(stream)
				return
			}
			if err := loop.SendAudio(ctx, frame); err != nil {
				if errors.Is(err, transcript.ErrAudioLimitExceeded) {
					c.logger.Warn().Err(err).Msg("Audio limit reached")
					return
				}
				c.logger.Debug().Err(err).Msg("Failed to forward audio frame")
			}
		}
	}
}

// captureLost handles a microphone that went away mid-recording.
func (c *Controller) captureLost(stream Stream) {
	c.mu.Lock()
	current := c.stream == stream
	c.mu.Unlock()
	if !current || c.machine.State() != session.StateRecording {
		return
	}

	ce := &CaptureError{Cause: CauseOther, Err: errors.New("stream ended")}
	c.mu.Lock()
	c.captureErr = ce
	c.mu.Unlock()
	c.teardown()
	c.metrics.RecordCaptureFailure(string(ce.Cause))
	c.metrics.RecordOutcome(OutcomeCaptureFailed)
	c.fire(session.EventCaptureFailed)
	c.observer.OnNotice(Notice{Kind: NoticeCaptureFailed, Cause: ce.Cause, Message: ce.Message()})
}

// Finish stops recording and submits the transcript.
//
// Guardrails run in order: a recording shorter than MinDuration returns to
// IDLE with ErrTooBrief and nothing is submitted. An empty transcript goes
// back to RECORDING with ErrNoSpeech and capture keeps running. Otherwise
// capture is released before the submission is sent.
func (c *Controller) Finish(ctx context.Context) (*models.AnalysisResult, error) {
	if s := c.machine.State(); s != session.StateRecording {
		return nil, fmt.Errorf("%w: finish in %s", session.ErrInvalidTransition, s)
	}

	c.mu.Lock()
	ready := c.stream != nil && c.acc != nil
	elapsed := c.now().Sub(c.startedAt)
	acc := c.acc
	cfg := c.cfg
	c.mu.Unlock()
	if !ready {
		return nil, fmt.Errorf("%w: finish while the microphone is starting", session.ErrInvalidTransition)
	}

	if elapsed < cfg.MinDuration {
		c.teardown()
		if _, err := c.machine.Fire(session.EventTooBrief); err != nil {
			return nil, err
		}
		c.metrics.RecordOutcome(OutcomeTooBrief)
		c.observer.OnNotice(Notice{Kind: NoticeTooBrief, Message: fmt.Sprintf(msgTooBrief, seconds(cfg.MinDuration))})
		return nil, ErrTooBrief
	}

	if _, err := c.machine.Fire(session.EventSubmit); err != nil {
		return nil, err
	}

	if strings.TrimSpace(acc.Confirmed()) == "" {
		c.fire(session.EventResume)
		c.metrics.RecordOutcome(OutcomeNoSpeech)
		c.observer.OnNotice(Notice{Kind: NoticeNoSpeech, Message: msgNoSpeech})
		return nil, ErrNoSpeech
	}

	text := acc.Freeze()
	c.teardown()

	c.logger.Info().
		Dur("elapsed", elapsed).
		Int("chars", len([]rune(text))).
		Msg("Submitting transcript")

	res, err := c.submitter.Submit(ctx, models.AnalyzeRequest{
		Text:           text,
		Mode:           cfg.Mode,
		ScenarioLabel:  cfg.ScenarioLabel,
		ScenarioPrompt: cfg.ScenarioPrompt,
	})
	if err != nil {
		c.fire(session.EventFail)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.TooShort() {
			c.metrics.RecordOutcome(OutcomeTooShort)
			c.observer.OnNotice(Notice{Kind: NoticeTooShort, Message: msgTooShort})
		} else {
			c.metrics.RecordOutcome(OutcomeFailed)
			c.observer.OnNotice(Notice{Kind: NoticeSubmitFailed, Message: failureMessage(err)})
		}
		c.logger.Warn().Err(err).Msg("Submission failed")
		return nil, err
	}

	if c.store != nil {
		if err := c.store.Save(ctx, res); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to save result")
		}
	}

	c.mu.Lock()
	c.result = res
	c.mu.Unlock()
	c.fire(session.EventSucceed)
	c.metrics.RecordOutcome(OutcomeSucceeded)
	c.observer.OnResult(res)
	return res, nil
}

// Cancel abandons a thinking or recording attempt and returns to IDLE.
func (c *Controller) Cancel() error {
	c.stopThinking()
	if !c.machine.Can(session.EventCancel) {
		return fmt.Errorf("%w: cancel in %s", session.ErrInvalidTransition, c.machine.State())
	}
	c.teardown()
	if _, err := c.machine.Fire(session.EventCancel); err != nil {
		return err
	}
	c.metrics.RecordOutcome(OutcomeCancelled)
	return nil
}

// Reset starts over after a completed attempt.
func (c *Controller) Reset() error {
	if _, err := c.machine.Fire(session.EventReset); err != nil {
		return err
	}
	c.mu.Lock()
	c.acc = nil
	c.result = nil
	c.mu.Unlock()
	return nil
}

// Close releases capture and abandons any attempt in progress.
func (c *Controller) Close() {
	c.stopThinking()
	c.teardown()
	if c.machine.Can(session.EventCancel) {
		c.fire(session.EventCancel)
	}
}

// Transcript returns the confirmed transcript of the current attempt.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	acc := c.acc
	c.mu.Unlock()
	if acc == nil {
		return ""
	}
	return acc.Confirmed()
}

// Preview returns the text being spoken right now.
func (c *Controller) Preview() string {
	c.mu.Lock()
	acc := c.acc
	c.mu.Unlock()
	if acc == nil {
		return ""
	}
	return acc.Preview()
}

// LastCaptureFailure returns the most recent microphone failure, or nil.
func (c *Controller) LastCaptureFailure() *CaptureError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureErr
}

// Result returns the result of the completed attempt, or nil.
func (c *Controller) Result() *models.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Controller) fire(ev session.Event) {
	if _, err := c.machine.Fire(ev); err != nil {
		c.logger.Debug().Err(err).Msg("Transition rejected")
	}
}

func (c *Controller) stopThinking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thinkTimer != nil {
		c.thinkTimer.Stop()
		c.thinkTimer = nil
	}
}

// teardown releases the microphone and stops recognition. Idempotent.
func (c *Controller) teardown() {
	c.mu.Lock()
	c.attempt++
	stream, loop, cancel, abort := c.stream, c.loop, c.cancel, c.abort
	c.stream, c.loop, c.cancel, c.abort = nil, nil, nil, nil
	if c.ceilTimer != nil {
		c.ceilTimer.Stop()
		c.ceilTimer = nil
	}
	c.mu.Unlock()

	if abort != nil {
		abort()
	}
	if cancel != nil {
		cancel()
	}
	if loop != nil {
		if err := loop.Stop(); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to stop recognition")
		}
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to release microphone")
		}
	}
}

func seconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}

func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.DisplayMessage()
	}
	return msgSubmitFailed
}
