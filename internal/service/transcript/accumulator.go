// Package transcript accumulates live speech recognition results into a
// confirmed transcript and keeps recognition running for the whole recording.
package transcript

import (
	"strings"
	"sync"

	"eq-coach-service/internal/service/stt"
)

// Accumulator merges incremental recognition events into a stable transcript.
// Finalized chunks are appended in delivery order exactly once; the interim
// chunk is a volatile preview replaced wholesale on every event.
// Thread-safe for concurrent access.
type Accumulator struct {
	mu      sync.RWMutex
	finals  []string
	interim string
	frozen  bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Apply applies one recognition event. Returns false if the accumulator is
// frozen and the event was ignored.
func (a *Accumulator) Apply(ev stt.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return false
	}
	for _, f := range ev.Finals {
		if f == "" {
			continue
		}
		a.finals = append(a.finals, f)
	}
	a.interim = ev.Interim
	return true
}

// Confirmed returns the concatenation of all finalized chunks.
func (a *Accumulator) Confirmed() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return strings.Join(a.finals, "")
}

// Interim returns the current interim chunk.
func (a *Accumulator) Interim() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.interim
}

// Preview returns what is being spoken right now: the interim chunk, or the
// latest finalized chunk when there is no interim.
func (a *Accumulator) Preview() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.interim != "" {
		return a.interim
	}
	if n := len(a.finals); n > 0 {
		return a.finals[n-1]
	}
	return ""
}

// Chunks returns the number of finalized chunks.
func (a *Accumulator) Chunks() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.finals)
}

// Freeze stops accepting events, discards the interim chunk and returns the
// confirmed transcript. Idempotent.
func (a *Accumulator) Freeze() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
	a.interim = ""
	return strings.Join(a.finals, "")
}

// Frozen reports whether Freeze was called since the last Reset.
func (a *Accumulator) Frozen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frozen
}

// Reset clears the transcript for a new recording.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finals = nil
	a.interim = ""
	a.frozen = false
}
