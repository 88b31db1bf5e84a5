// Package store keeps the most recent analysis result in a single fixed slot.
// Each save overwrites the previous result; there is no history.
package store

import (
	"context"
	"errors"
	"sync"

	"eq-coach-service/internal/models"
)

// LastResultKey is the fixed slot name for the latest analysis.
const LastResultKey = "analysisResult"

// ErrNotFound is returned when no result has been saved yet.
var ErrNotFound = errors.New("no saved analysis result")

// ResultStore persists the latest analysis result.
type ResultStore interface {
	Save(ctx context.Context, r *models.AnalysisResult) error
	Load(ctx context.Context) (*models.AnalysisResult, error)
}

// Memory is an in-process ResultStore.
type Memory struct {
	mu     sync.RWMutex
	result *models.AnalysisResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save stores a copy of r.
func (m *Memory) Save(ctx context.Context, r *models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r.Clone()
	return nil
}

// Load returns a copy of the stored result.
func (m *Memory) Load(ctx context.Context) (*models.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.result == nil {
		return nil, ErrNotFound
	}
	return m.result.Clone(), nil
}
