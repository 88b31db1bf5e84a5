package practice

import (
	"context"
	"errors"
	"sync"

	"eq-coach-service/internal/service/stt"
)

// ErrMicrophoneBusy is returned when a microphone is requested twice.
var ErrMicrophoneBusy = errors.New("microphone request already pending")

type grant struct {
	ok    bool
	cause Cause
}

// RemoteMicrophone is a microphone living on the client side of a
// connection. Acquire asks the client for access and waits for its answer;
// audio frames arrive through Push.
type RemoteMicrophone struct {
	request func() error

	mu         sync.Mutex
	pending    chan grant
	pendingCtx context.Context
	stream     *remoteStream
}

// NewRemoteMicrophone creates a microphone that calls request to ask the
// client for access.
func NewRemoteMicrophone(request func() error) *RemoteMicrophone {
	return &RemoteMicrophone{request: request}
}

// Acquire implements Microphone. A request whose context has ended gives
// way to a new one.
func (m *RemoteMicrophone) Acquire(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	if m.pending != nil && m.pendingCtx.Err() == nil {
		m.mu.Unlock()
		return nil, &CaptureError{Cause: CauseOther, Err: ErrMicrophoneBusy}
	}
	ch := make(chan grant, 1)
	m.pending, m.pendingCtx = ch, ctx
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.pending == ch {
			m.pending, m.pendingCtx = nil, nil
		}
		m.mu.Unlock()
	}()

	if err := m.request(); err != nil {
		return nil, &CaptureError{Cause: CauseOther, Err: err}
	}

	select {
	case g := <-ch:
		if !g.ok {
			return nil, &CaptureError{Cause: g.cause}
		}
	case <-ctx.Done():
		return nil, &CaptureError{Cause: CauseOther, Err: ctx.Err()}
	}

	s := &remoteStream{frames: make(chan []byte, 64)}
	m.mu.Lock()
	m.stream = s
	m.mu.Unlock()
	return s, nil
}

// Grant answers a pending Acquire. Answers with no pending request are ignored.
func (m *RemoteMicrophone) Grant(ok bool, cause Cause) {
	m.mu.Lock()
	ch := m.pending
	m.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- grant{ok: ok, cause: cause}:
	default:
	}
}

// Push delivers an audio frame to the open stream. Frames are dropped when
// no stream is open or the consumer is behind.
func (m *RemoteMicrophone) Push(frame []byte) {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s != nil {
		s.push(frame)
	}
}

// Lost reports that the client's device went away; the open stream ends.
func (m *RemoteMicrophone) Lost() {
	m.mu.Lock()
	s := m.stream
	m.stream = nil
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

type remoteStream struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
}

func (s *remoteStream) Frames() <-chan []byte {
	return s.frames
}

func (s *remoteStream) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- frame:
	default:
	}
}

func (s *remoteStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// RemoteRecognizer is a recognizer running on the client, such as a
// browser's speech recognition. The connection feeds its results through
// Deliver, End and Fail; Start asks the client to (re)start recognition.
type RemoteRecognizer struct {
	start func() error
	stop  func() error

	mu sync.Mutex
	cb stt.Callback
}

// NewRemoteRecognizer creates a recognizer that calls start and stop to
// control recognition on the client. Either may be nil.
func NewRemoteRecognizer(start, stop func() error) *RemoteRecognizer {
	return &RemoteRecognizer{start: start, stop: stop}
}

// Start implements stt.Recognizer.
func (r *RemoteRecognizer) Start(ctx context.Context, cb stt.Callback) error {
	r.mu.Lock()
	r.cb = cb
	r.mu.Unlock()
	if r.start != nil {
		return r.start()
	}
	return nil
}

// SendAudio implements stt.Recognizer. Audio stays on the client.
func (r *RemoteRecognizer) SendAudio(ctx context.Context, audio []byte) error {
	return nil
}

// Close implements stt.Recognizer.
func (r *RemoteRecognizer) Close() error {
	r.mu.Lock()
	live := r.cb != nil
	r.cb = nil
	r.mu.Unlock()
	if live && r.stop != nil {
		return r.stop()
	}
	return nil
}

// Deliver passes a recognition result from the client.
func (r *RemoteRecognizer) Deliver(ev stt.Event) {
	if cb := r.callback(); cb != nil {
		cb.OnResult(ev)
	}
}

// End reports that recognition on the client ended passively.
func (r *RemoteRecognizer) End() {
	if cb := r.callback(); cb != nil {
		cb.OnEnd()
	}
}

// Fail reports a recognition error on the client.
func (r *RemoteRecognizer) Fail(err error) {
	if cb := r.callback(); cb != nil {
		cb.OnError(err)
	}
}

func (r *RemoteRecognizer) callback() stt.Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cb
}
