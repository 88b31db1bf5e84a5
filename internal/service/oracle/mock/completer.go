package mock

import (
	"context"
	"sync"
	"time"

	"eq-coach-service/internal/service/oracle"
)

// Completer implements oracle.Completer with a scripted reply.
type Completer struct {
	mu      sync.Mutex
	prompts []oracle.Prompt

	Reply string
	Err   error
	// Delay simulates latency; it honours context cancellation.
	Delay time.Duration
}

// NewCompleter creates a completer that always returns reply.
func NewCompleter(reply string) *Completer {
	return &Completer{Reply: reply}
}

// Complete implements oracle.Completer.
func (c *Completer) Complete(ctx context.Context, p oracle.Prompt) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, p)
	delay, reply, err := c.Delay, c.Reply, c.Err
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Prompts returns every prompt received so far.
func (c *Completer) Prompts() []oracle.Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]oracle.Prompt(nil), c.prompts...)
}

// Calls returns how many times Complete was called.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}
