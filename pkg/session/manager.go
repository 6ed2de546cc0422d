package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/google/uuid"
)

// Factory starts a new session under id.
type Factory func(ctx context.Context, id string) (ports.Session, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live sessions of a process.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	factory Factory

	mu       sync.Mutex            // Global lock for the maps
	locks    map[string]*lockEntry // Map of active locks
	sessions map[string]ports.Session

	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager that starts sessions with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]ports.Session),
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

func (m *Manager) lookup(sessionID string) (ports.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	return fn(ctx)
}

// Create starts a session. An empty id is replaced by a fresh UUIDv7.
func (m *Manager) Create(ctx context.Context, sessionID string) (ports.Session, error) {
	if sessionID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session id: %w", err)
		}
		sessionID = id.String()
	}

	var created ports.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, exists := m.lookup(sessionID); exists {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, sessionID)
		}

		s, err := m.factory(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to start session %s: %w", sessionID, err)
		}

		m.mu.Lock()
		m.sessions[sessionID] = s
		m.mu.Unlock()

		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session created", "session_id", sessionID)
	return created, nil
}

// With runs fn against the session while holding its lock.
func (m *Manager) With(ctx context.Context, sessionID string, fn func(context.Context, ports.Session) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, ok := m.lookup(sessionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return fn(ctx, s)
	})
}

// Close shuts a session down and forgets it.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, ok := m.lookup(sessionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}

		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()

		if err := s.Shutdown(ctx); err != nil {
			m.logger.Warn("session did not shut down cleanly", "session_id", sessionID, "err", err)
			return err
		}
		m.logger.Info("session closed", "session_id", sessionID)
		return nil
	})
}

// CloseAll shuts every session down.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.List() {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the IDs of the live sessions, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
