package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eq-coach-service/internal/service/stt/mock"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func fastPolicy(max int) RestartPolicy {
	return RestartPolicy{
		MaxConsecutive:  max,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ImmediateWindow: time.Second,
	}
}

func TestRestartPolicy_Backoff(t *testing.T) {
	p := RestartPolicy{BaseDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second}

	tests := []struct {
		n        int
		expected time.Duration
	}{
		{0, 0},
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{5, 4 * time.Second},
		{10, 4 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.n); got != tt.expected {
			t.Errorf("Backoff(%d): expected %v, got %v", tt.n, tt.expected, got)
		}
	}
}

func TestLoopState_String(t *testing.T) {
	if LoopUnavailable.String() != "UNAVAILABLE" {
		t.Errorf("expected UNAVAILABLE, got %s", LoopUnavailable.String())
	}
	if LoopState(42).String() != "UNKNOWN(42)" {
		t.Errorf("expected UNKNOWN(42), got %s", LoopState(42).String())
	}
}

func TestLoop_PassiveEndRestartsTransparently(t *testing.T) {
	rec := mock.NewWithUtterances([]mock.SimulatedUtterance{
		{Interims: []string{"我注意到"}, Final: "我注意到你迟到了。"},
		{Interims: []string{"我有些"}, Final: "我有些担心。"},
	}, 0)
	acc := NewAccumulator()
	loop := NewLoopWithPolicy(rec, acc, fastPolicy(3))

	var mu sync.Mutex
	var updates []string
	loop.SetUpdateCallback(func(confirmed, preview string) {
		mu.Lock()
		updates = append(updates, preview)
		mu.Unlock()
	})

	ctx := context.Background()
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First utterance: one interim, then the final which ends the session.
	loop.SendAudio(ctx, []byte{1})
	loop.SendAudio(ctx, []byte{1})

	waitFor(t, func() bool { return rec.Starts() == 2 && loop.State() == LoopListening })

	loop.SendAudio(ctx, []byte{1})
	loop.SendAudio(ctx, []byte{1})

	waitFor(t, func() bool { return acc.Confirmed() == "我注意到你迟到了。我有些担心。" })

	if loop.Restarts() < 1 {
		t.Errorf("expected at least 1 restart, got %d", loop.Restarts())
	}
	if loop.State() == LoopUnavailable {
		t.Error("expected loop to stay available after healthy passive ends")
	}

	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(updates) < 4 {
		t.Errorf("expected at least 4 updates, got %d", len(updates))
	}
}

func TestLoop_ImmediateFailures_BecomeUnavailable(t *testing.T) {
	rec := mock.NewWithUtterances(mock.DefaultUtterances, 0)
	rec.EndOnStart = true
	loop := NewLoopWithPolicy(rec, NewAccumulator(), fastPolicy(3))

	unavailable := make(chan error, 1)
	loop.SetUnavailableCallback(func(err error) { unavailable <- err })

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-unavailable:
		if !errors.Is(err, ErrRecognitionUnavailable) {
			t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected loop to give up")
	}

	if loop.State() != LoopUnavailable {
		t.Errorf("expected UNAVAILABLE, got %s", loop.State())
	}
	if rec.Starts() != 3 {
		t.Errorf("expected exactly 3 starts, got %d", rec.Starts())
	}

	// No further restarts after giving up.
	time.Sleep(20 * time.Millisecond)
	if rec.Starts() != 3 {
		t.Errorf("expected no restarts after giving up, got %d starts", rec.Starts())
	}
}

func TestLoop_StartErrors_CountAsFailures(t *testing.T) {
	rec := mock.NewWithUtterances(mock.DefaultUtterances, 0)
	rec.StartErr = errors.New("not-allowed")
	loop := NewLoopWithPolicy(rec, NewAccumulator(), fastPolicy(2))

	done := make(chan error, 1)
	loop.SetUnavailableCallback(func(err error) { done <- err })

	loop.Start(context.Background())

	select {
	case err := <-done:
		if !errors.Is(err, ErrRecognitionUnavailable) {
			t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected loop to give up")
	}

	if loop.LastError() == nil {
		t.Error("expected last error to be recorded")
	}
}

func TestLoop_StopCancelsRestart(t *testing.T) {
	rec := mock.NewWithUtterances(mock.DefaultUtterances, 0)
	rec.EndOnStart = true
	policy := fastPolicy(10)
	policy.BaseDelay = 50 * time.Millisecond
	loop := NewLoopWithPolicy(rec, NewAccumulator(), policy)

	loop.Start(context.Background())
	if err := loop.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if rec.Starts() != 1 {
		t.Errorf("expected no restart after Stop, got %d starts", rec.Starts())
	}
	if loop.State() != LoopStopped {
		t.Errorf("expected STOPPED, got %s", loop.State())
	}

	// Idempotent
	if err := loop.Stop(); err != nil {
		t.Errorf("expected second Stop to succeed, got %v", err)
	}
}

func TestLoop_StartTwice(t *testing.T) {
	loop := NewLoop(mock.NewWithUtterances(mock.DefaultUtterances, 0), NewAccumulator())
	loop.Start(context.Background())
	defer loop.Stop()

	if err := loop.Start(context.Background()); !errors.Is(err, ErrLoopNotIdle) {
		t.Errorf("expected ErrLoopNotIdle, got %v", err)
	}
}

func TestLoop_AudioLimit(t *testing.T) {
	loop := NewLoop(mock.NewWithUtterances(mock.DefaultUtterances, 0), NewAccumulator())
	loop.MaxAudioBytes = 4
	ctx := context.Background()
	loop.Start(ctx)
	defer loop.Stop()

	if err := loop.SendAudio(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := loop.SendAudio(ctx, []byte{4, 5}); !errors.Is(err, ErrAudioLimitExceeded) {
		t.Errorf("expected ErrAudioLimitExceeded, got %v", err)
	}
}

func TestLoop_FrozenAccumulatorIgnoresLateResults(t *testing.T) {
	rec := mock.NewWithUtterances([]mock.SimulatedUtterance{{Final: "太晚了"}}, 0)
	acc := NewAccumulator()
	loop := NewLoop(rec, acc)
	ctx := context.Background()
	loop.Start(ctx)
	defer loop.Stop()

	acc.Freeze()
	loop.SendAudio(ctx, []byte{1})

	if acc.Confirmed() != "" {
		t.Errorf("expected frozen transcript to stay empty, got %q", acc.Confirmed())
	}
}
