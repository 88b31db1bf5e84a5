package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/observability/metrics"
	"eq-coach-service/internal/service/analysis"
	"eq-coach-service/internal/service/practice"
	"eq-coach-service/internal/service/session"
	"eq-coach-service/internal/service/stt"
)

// Frames sent by the client.
const (
	frameScenario         = "scenario"
	frameBegin            = "begin"
	frameStart            = "start"
	frameFinish           = "finish"
	frameCancel           = "cancel"
	frameReset            = "reset"
	frameMic              = "mic"
	frameMicLost          = "mic_lost"
	frameRecognition      = "recognition"
	frameRecognitionEnd   = "recognition_end"
	frameRecognitionError = "recognition_error"
)

// Frames sent by the server.
const (
	frameHello            = "hello"
	frameState            = "state"
	frameTranscript       = "transcript"
	frameNotice           = "notice"
	frameResult           = "result"
	frameMicRequest       = "mic_request"
	frameRecognitionStart = "recognition_start"
	frameRecognitionStop  = "recognition_stop"
	frameError            = "error"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientFrame is a JSON text message from the browser. Audio arrives as
// binary messages.
type clientFrame struct {
	Type    string   `json:"type"`
	Mode    string   `json:"mode,omitempty"`
	Label   string   `json:"label,omitempty"`
	Prompt  string   `json:"prompt,omitempty"`
	OK      bool     `json:"ok,omitempty"`
	Cause   string   `json:"cause,omitempty"`
	Finals  []string `json:"finals,omitempty"`
	Interim string   `json:"interim,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// serverFrame is a JSON message pushed to the browser.
type serverFrame struct {
	Type        string                 `json:"type"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Recognition string                 `json:"recognition,omitempty"`
	From        string                 `json:"from,omitempty"`
	To          string                 `json:"to,omitempty"`
	Confirmed   string                 `json:"confirmed,omitempty"`
	Preview     string                 `json:"preview,omitempty"`
	Notice      *practice.Notice       `json:"notice,omitempty"`
	Result      *models.AnalysisResult `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// liveSession runs one practice controller over a websocket. The browser
// owns the microphone and, unless the server recognizes speech itself, the
// recognizer; the controller drives both through request frames.
type liveSession struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu         sync.Mutex
	recognizer *practice.RemoteRecognizer

	mic  *practice.RemoteMicrophone
	ctrl *practice.Controller
}

// live upgrades to a websocket and serves a practice session until the
// client disconnects.
func (h *handlers) live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := logging.WithComponent("live")
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := h.sessions.Next(session.NewClientId())
	s := &liveSession{
		conn:   conn,
		logger: logging.WithSession(sessionID, ""),
	}
	s.mic = practice.NewRemoteMicrophone(func() error {
		return s.send(serverFrame{Type: frameMicRequest})
	})

	recognizers := h.app.Recognizers
	recognition := "server"
	if recognizers == nil {
		recognizers = s.remoteRecognizer
		recognition = "client"
	}

	s.ctrl = practice.NewController(sessionID, h.app.Practice, s.mic, recognizers,
		practice.SubmitterFunc(func(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
			return h.submit(analysis.WithRequestID(ctx, sessionID), req)
		}),
		practice.WithObserver(s),
	)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	metrics.DefaultMetrics.RecordSessionStart()
	defer metrics.DefaultMetrics.RecordSessionEnd()
	defer s.ctrl.Close()

	s.logger.Info().Str("recognition", recognition).Msg("Live practice session opened")
	if err := s.send(serverFrame{Type: frameHello, SessionID: sessionID, Recognition: recognition}); err != nil {
		return
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Live practice connection lost")
			}
			break
		}
		if kind == websocket.BinaryMessage {
			s.mic.Push(data)
			continue
		}

		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.send(serverFrame{Type: frameError, Error: "invalid frame"})
			continue
		}
		s.handle(ctx, f)
	}

	s.logger.Info().Str("state", s.ctrl.State().String()).Msg("Live practice session closed")
}

// handle applies one client frame. Commands that wait on the client run in
// their own goroutine so the read loop keeps delivering answers.
func (s *liveSession) handle(ctx context.Context, f clientFrame) {
	switch f.Type {
	case frameScenario:
		s.ctrl.SetScenario(models.ParseMode(f.Mode), f.Label, f.Prompt)
	case frameBegin:
		go s.command(func() error { return s.ctrl.Begin(ctx) })
	case frameStart:
		go s.command(func() error { return s.ctrl.StartRecording(ctx) })
	case frameFinish:
		go s.command(func() error {
			_, err := s.ctrl.Finish(ctx)
			return err
		})
	case frameCancel:
		s.command(s.ctrl.Cancel)
	case frameReset:
		s.command(s.ctrl.Reset)
	case frameMic:
		s.mic.Grant(f.OK, practice.ParseCause(f.Cause))
	case frameMicLost:
		s.mic.Lost()
	case frameRecognition:
		if rec := s.currentRecognizer(); rec != nil {
			rec.Deliver(stt.Event{Finals: f.Finals, Interim: f.Interim})
		}
	case frameRecognitionEnd:
		if rec := s.currentRecognizer(); rec != nil {
			rec.End()
		}
	case frameRecognitionError:
		if rec := s.currentRecognizer(); rec != nil {
			rec.Fail(errors.New(f.Error))
		}
	default:
		s.send(serverFrame{Type: frameError, Error: "unknown frame type: " + f.Type})
	}
}

// command runs fn and reports rejected transitions. Other failures already
// reached the client as notices.
func (s *liveSession) command(fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("Practice command panicked")
			s.send(serverFrame{Type: frameError, Error: "internal error"})
		}
	}()

	err := fn()
	if err == nil {
		return
	}
	if errors.Is(err, practice.ErrAbandoned) {
		s.logger.Debug().Msg("Recording abandoned before capture started")
		return
	}
	if errors.Is(err, session.ErrInvalidTransition) {
		s.send(serverFrame{Type: frameError, Error: err.Error()})
		return
	}
	s.logger.Debug().Err(err).Msg("Practice command ended with error")
}

// remoteRecognizer creates a recognizer that runs in the browser.
func (s *liveSession) remoteRecognizer(ctx context.Context) (stt.Recognizer, error) {
	rec := practice.NewRemoteRecognizer(
		func() error { return s.send(serverFrame{Type: frameRecognitionStart}) },
		func() error { return s.send(serverFrame{Type: frameRecognitionStop}) },
	)
	s.mu.Lock()
	s.recognizer = rec
	s.mu.Unlock()
	return rec, nil
}

func (s *liveSession) currentRecognizer() *practice.RemoteRecognizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recognizer
}

func (s *liveSession) send(f serverFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(f); err != nil {
		s.logger.Debug().Err(err).Str("frame", f.Type).Msg("Failed to write frame")
		return err
	}
	return nil
}

func (s *liveSession) OnState(from, to session.State) {
	s.send(serverFrame{Type: frameState, From: from.String(), To: to.String()})
}

func (s *liveSession) OnTranscript(confirmed, preview string) {
	s.send(serverFrame{Type: frameTranscript, Confirmed: confirmed, Preview: preview})
}

func (s *liveSession) OnNotice(n practice.Notice) {
	s.send(serverFrame{Type: frameNotice, Notice: &n})
}

func (s *liveSession) OnResult(r *models.AnalysisResult) {
	s.send(serverFrame{Type: frameResult, Result: r})
}

// submit runs the analysis in-process, translating failures into the same
// APIError a remote client would decode from the envelope.
func (h *handlers) submit(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	res, err := h.app.Analysis.Analyze(ctx, req)
	if err != nil {
		aerr := analysis.AsError(err)
		return nil, &practice.APIError{Status: aerr.Status, Code: aerr.Code, Message: aerr.Message}
	}
	return res, nil
}
