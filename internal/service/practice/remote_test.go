package practice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eq-coach-service/internal/models"
	oraclemock "eq-coach-service/internal/service/oracle/mock"
	"eq-coach-service/internal/service/stt"
)

func TestParseCause(t *testing.T) {
	tests := []struct {
		in   string
		want Cause
	}{
		{"denied", CauseDenied},
		{"NotAllowedError", CauseDenied},
		{"not_found", CauseNotFound},
		{"NotFoundError", CauseNotFound},
		{"AbortError", CauseOther},
		{"", CauseOther},
	}
	for _, tt := range tests {
		if got := ParseCause(tt.in); got != tt.want {
			t.Errorf("ParseCause(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRemoteMicrophone_Granted(t *testing.T) {
	requested := make(chan struct{}, 1)
	mic := NewRemoteMicrophone(func() error {
		requested <- struct{}{}
		return nil
	})

	go func() {
		<-requested
		mic.Grant(true, "")
	}()

	stream, err := mic.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mic.Push([]byte{1, 2})
	select {
	case f := <-stream.Frames():
		if len(f) != 2 {
			t.Errorf("expected 2-byte frame, got %d", len(f))
		}
	case <-time.After(time.Second):
		t.Fatal("expected pushed frame")
	}

	mic.Lost()
	if _, ok := <-stream.Frames(); ok {
		t.Error("expected frames closed after device loss")
	}
	if err := stream.Close(); err != nil {
		t.Errorf("expected second close to succeed, got %v", err)
	}
}

func TestRemoteMicrophone_Denied(t *testing.T) {
	var mic *RemoteMicrophone
	mic = NewRemoteMicrophone(func() error {
		go mic.Grant(false, CauseNotFound)
		return nil
	})

	_, err := mic.Acquire(context.Background())
	var ce *CaptureError
	if !errors.As(err, &ce) || ce.Cause != CauseNotFound {
		t.Errorf("expected not_found capture error, got %v", err)
	}
}

func TestRemoteMicrophone_ContextCancelled(t *testing.T) {
	mic := NewRemoteMicrophone(func() error { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mic.Acquire(ctx)
	var ce *CaptureError
	if !errors.As(err, &ce) || ce.Cause != CauseOther || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected other capture error wrapping deadline, got %v", err)
	}

	mic.Grant(true, "")
}

func TestRemoteMicrophone_AbortedRequestGivesWay(t *testing.T) {
	requests := make(chan struct{}, 4)
	mic := NewRemoteMicrophone(func() error {
		requests <- struct{}{}
		return nil
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := mic.Acquire(firstCtx)
		first <- err
	}()
	<-requests

	if _, err := mic.Acquire(context.Background()); !errors.Is(err, ErrMicrophoneBusy) {
		t.Fatalf("expected ErrMicrophoneBusy while a request is live, got %v", err)
	}

	cancelFirst()
	go func() {
		<-requests
		mic.Grant(true, "")
	}()
	stream, err := mic.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected the new request to take over, got %v", err)
	}
	defer stream.Close()

	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the first request to end cancelled, got %v", err)
	}
}

type eventSink struct {
	events []stt.Event
	ended  int
	errs   []error
}

func (s *eventSink) OnResult(ev stt.Event) { s.events = append(s.events, ev) }
func (s *eventSink) OnEnd()                { s.ended++ }
func (s *eventSink) OnError(err error)     { s.errs = append(s.errs, err) }

func TestRemoteRecognizer(t *testing.T) {
	var starts, stops int
	rec := NewRemoteRecognizer(
		func() error { starts++; return nil },
		func() error { stops++; return nil },
	)

	rec.Deliver(stt.Event{Interim: "ignored"})

	sink := &eventSink{}
	if err := rec.Start(context.Background(), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.Deliver(stt.Event{Finals: []string{"你好"}})
	rec.End()
	rec.Fail(errors.New("network"))

	if len(sink.events) != 1 || sink.events[0].Finals[0] != "你好" {
		t.Errorf("expected one delivered event, got %v", sink.events)
	}
	if sink.ended != 1 || len(sink.errs) != 1 {
		t.Errorf("expected one end and one error, got %d and %d", sink.ended, len(sink.errs))
	}

	rec.Close()
	rec.Close()
	if starts != 1 || stops != 1 {
		t.Errorf("expected 1 start and 1 stop, got %d and %d", starts, stops)
	}
}

func TestHTTPSubmitter(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      any
		raw       string
		wantErr   bool
		tooShort  bool
		wantScore int
	}{
		{
			name:      "success",
			status:    http.StatusOK,
			body:      models.Envelope{Success: true, Data: oraclemock.CannedResult},
			wantScore: 55,
		},
		{
			name:     "too short",
			status:   http.StatusBadRequest,
			body:     models.Envelope{Success: false, Error: "TOO_SHORT: 录音内容太短", Code: "TOO_SHORT"},
			wantErr:  true,
			tooShort: true,
		},
		{
			name:    "oracle failure",
			status:  http.StatusBadGateway,
			body:    models.Envelope{Success: false, Error: "分析服务暂时不可用", Code: "ORACLE_UNAVAILABLE"},
			wantErr: true,
		},
		{
			name:    "not json",
			status:  http.StatusBadGateway,
			raw:     "<html>bad gateway</html>",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.AnalyzeRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/analyze" {
					t.Errorf("expected /v1/analyze, got %s", r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("expected JSON content type, got %s", ct)
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				if tt.raw != "" {
					w.Write([]byte(tt.raw))
					return
				}
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			sub := NewHTTPSubmitter(srv.URL+"/", 5*time.Second)
			res, err := sub.Submit(context.Background(), models.AnalyzeRequest{Text: "你总是迟到", Mode: models.ModeWork})

			if got.Text != "你总是迟到" || got.Mode != models.ModeWork {
				t.Errorf("expected request body forwarded, got %+v", got)
			}
			if tt.wantErr {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected APIError, got %v", err)
				}
				if apiErr.Status != tt.status {
					t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
				}
				if apiErr.TooShort() != tt.tooShort {
					t.Errorf("expected TooShort %v, got %v", tt.tooShort, apiErr.TooShort())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Scores["empathy"] != tt.wantScore {
				t.Errorf("expected empathy %d, got %d", tt.wantScore, res.Scores["empathy"])
			}
		})
	}
}

func TestAPIError_DisplayMessage(t *testing.T) {
	e := &APIError{Code: "TOO_SHORT", Message: "TOO_SHORT: 录音内容太短"}
	if got := e.DisplayMessage(); got != "录音内容太短" {
		t.Errorf("expected marker stripped, got %q", got)
	}
}
