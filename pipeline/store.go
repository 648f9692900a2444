package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// RunStore persists run snapshots at each stage transition so status survives
// the process when a durable backend is configured.
type RunStore interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, runID string) (*State, error)
}

// MemoryRunStore is the default in-process RunStore.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*State
}

// NewMemoryRunStore creates an empty store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*State)}
}

// Save stores a deep copy of the snapshot.
func (m *MemoryRunStore) Save(ctx context.Context, state *State) error {
	if state.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[state.RunID] = state.Clone()
	return nil
}

// Load returns a deep copy of the stored snapshot.
func (m *MemoryRunStore) Load(ctx context.Context, runID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return state.Clone(), nil
}
