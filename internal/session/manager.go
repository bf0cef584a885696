package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long an idle visitor session is kept
const DefaultTTL = 7 * 24 * time.Hour

// Manager creates, loads and mutates visitor states. Mutations for the same
// visitor are serialized and committed whole, so readers never observe a
// partially applied record.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*visitorLock
}

type visitorLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a manager on top of the given store
func NewManager(store Store, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*visitorLock),
	}
}

// SetClock overrides the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// TTL returns the idle lifetime of a session
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Now reads the manager's clock
func (m *Manager) Now() time.Time {
	return m.now()
}

// Store returns the underlying store
func (m *Manager) Store() Store {
	return m.store
}

// Create starts a new visitor session with both namespaces unauthenticated
func (m *Manager) Create(ctx context.Context) (*State, error) {
	st := NewState(ulid.Make().String(), m.now().UTC(), m.ttl)
	if err := m.store.Put(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Debug().Str("session_id", st.ID).Msg("Session created")
	return st, nil
}

// Load returns the current state of a visitor
func (m *Manager) Load(ctx context.Context, id string) (*State, error) {
	st, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Expired(m.now()) {
		return nil, ErrExpired
	}
	return st, nil
}

// Update applies fn to the visitor state and persists the result. When fn
// returns an error nothing is written and the stored state stays as it was.
func (m *Manager) Update(ctx context.Context, id string, fn func(*State) error) (*State, error) {
	unlock := m.lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := m.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(st); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	st.UpdatedAt = now
	st.ExpiresAt = now.Add(m.ttl)

	if err := m.store.Put(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return st, nil
}

// Destroy removes a visitor session
func (m *Manager) Destroy(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Purge removes every expired session
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	return m.PurgeBefore(ctx, m.now())
}

// PurgeBefore removes sessions that expired before the given time
func (m *Manager) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	removed, err := m.store.PurgeExpired(ctx, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return removed, nil
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &visitorLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}
