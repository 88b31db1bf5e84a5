package session

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator issues practice session IDs.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

// Next returns a session ID scoped to clientId.
func (g *Generator) Next(clientId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-sess-%d", clientId, n)
}

// NewClientId returns a short random client identifier.
func NewClientId() string {
	return uuid.NewString()[:8]
}
