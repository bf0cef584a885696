package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Store persists visitor states. Implementations hand out copies: mutating a
// returned state has no effect until it is Put back.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Put(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes states that expired before the given time and returns
	// how many were removed
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// MemoryStore keeps states in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.ID] = state.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, id)
	return nil
}

func (m *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, st := range m.states {
		if st.Expired(before) {
			delete(m.states, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored states
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
