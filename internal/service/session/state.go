// Package session provides practice session IDs and the session state machine.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the state of one practice attempt.
type State int

const (
	// StateIdle - No capture running, waiting for the user.
	StateIdle State = iota
	// StateThinking - Optional pre-roll before recording starts.
	StateThinking
	// StateRecording - Microphone and recognition are live.
	StateRecording
	// StateAnalyzing - Capture stopped, submission in flight.
	StateAnalyzing
	// StateDone - Analysis succeeded and the result was handed off.
	// Terminal until Reset.
	StateDone
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateThinking:
		return "THINKING"
	case StateRecording:
		return "RECORDING"
	case StateAnalyzing:
		return "ANALYZING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (DONE).
func (s State) IsTerminal() bool {
	return s == StateDone
}

// Event triggers a state transition.
type Event int

const (
	// EventBegin starts the thinking pre-roll.
	EventBegin Event = iota
	// EventStart starts recording, from idle or when thinking ends.
	EventStart
	// EventSubmit stops capture and submits the transcript.
	EventSubmit
	// EventTooBrief rejects a recording shorter than the minimum duration.
	EventTooBrief
	// EventCaptureFailed reports that the microphone could not be acquired.
	EventCaptureFailed
	// EventResume returns to recording because nothing was transcribed.
	EventResume
	// EventFail reports a rejected or failed submission.
	EventFail
	// EventSucceed reports a successful analysis.
	EventSucceed
	// EventCancel abandons the attempt.
	EventCancel
	// EventReset starts over after a completed attempt.
	EventReset
)

// String returns the string representation of the event.
func (e Event) String() string {
	switch e {
	case EventBegin:
		return "BEGIN"
	case EventStart:
		return "START"
	case EventSubmit:
		return "SUBMIT"
	case EventTooBrief:
		return "TOO_BRIEF"
	case EventCaptureFailed:
		return "CAPTURE_FAILED"
	case EventResume:
		return "RESUME"
	case EventFail:
		return "FAIL"
	case EventSucceed:
		return "SUCCEED"
	case EventCancel:
		return "CANCEL"
	case EventReset:
		return "RESET"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", e)
	}
}

// ErrInvalidTransition is returned when an event is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// transitions is the complete transition table. Pairs not listed are rejected.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventBegin: StateThinking,
		EventStart: StateRecording,
	},
	StateThinking: {
		EventStart:  StateRecording,
		EventCancel: StateIdle,
	},
	StateRecording: {
		EventSubmit:        StateAnalyzing,
		EventTooBrief:      StateIdle,
		EventCaptureFailed: StateIdle,
		EventCancel:        StateIdle,
	},
	StateAnalyzing: {
		EventResume:        StateRecording,
		EventFail:          StateIdle,
		EventSucceed:       StateDone,
		EventCaptureFailed: StateIdle,
	},
	StateDone: {
		EventReset: StateIdle,
	},
}

// Next returns the state reached by applying ev in s.
func Next(s State, ev Event) (State, bool) {
	to, ok := transitions[s][ev]
	return to, ok
}

// TransitionFunc observes applied transitions.
type TransitionFunc func(from, to State, ev Event)

// Machine manages the state machine for a single practice session.
// Thread-safe for concurrent access. Every state change goes through Fire.
//
// State transitions:
//
//	IDLE → THINKING → RECORDING → ANALYZING → DONE
//	  │                  ↑            │
//	  └──── Start ───────┘            └── Resume ──→ RECORDING
//
// Rules:
//   - RECORDING: TooBrief, CaptureFailed and Cancel return to IDLE
//   - ANALYZING: Fail returns to IDLE, Resume goes back to RECORDING
//   - DONE: only Reset is accepted
type Machine struct {
	mu        sync.RWMutex
	sessionId string
	state     State
	onChange  TransitionFunc
}

// NewMachine creates a new session state machine in IDLE state.
func NewMachine(sessionId string) *Machine {
	return &Machine{
		sessionId: sessionId,
		state:     StateIdle,
	}
}

// SessionId returns the session ID.
func (m *Machine) SessionId() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionId
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Can returns true if ev is allowed in the current state.
func (m *Machine) Can(ev Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := Next(m.state, ev)
	return ok
}

// OnTransition registers a callback invoked after each applied transition.
// The callback runs outside the machine's lock.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Fire validates ev against the current state and applies it.
// On rejection the state is unchanged and ErrInvalidTransition is returned.
func (m *Machine) Fire(ev Event) (State, error) {
	m.mu.Lock()
	from := m.state
	to, ok := Next(from, ev)
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, from)
	}
	m.state = to
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(from, to, ev)
	}
	return to, nil
}
