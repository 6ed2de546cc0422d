package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
)

// Store implements ports.Journal in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]domain.Entry
	mu   sync.RWMutex
}

// NewStore creates a new in-memory journal.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]domain.Entry),
	}
}

// Append records an entry at the end of the session transcript.
func (s *Store) Append(ctx context.Context, sessionID string, entry domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = append(s.data[sessionID], entry)
	return nil
}

// Pop removes and returns the most recent entry.
func (s *Store) Pop(ctx context.Context, sessionID string) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.data[sessionID]
	if len(entries) == 0 {
		return domain.Entry{}, domain.ErrEmptyHistory
	}

	last := entries[len(entries)-1]
	if len(entries) == 1 {
		delete(s.data, sessionID)
	} else {
		s.data[sessionID] = entries[:len(entries)-1]
	}
	return last, nil
}

// Shift removes and returns the oldest entry.
func (s *Store) Shift(ctx context.Context, sessionID string) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.data[sessionID]
	if len(entries) == 0 {
		return domain.Entry{}, domain.ErrEmptyHistory
	}

	first := entries[0]
	if len(entries) == 1 {
		delete(s.data, sessionID)
	} else {
		s.data[sessionID] = slices.Clone(entries[1:])
	}
	return first, nil
}

// List returns a copy of the transcript so callers can't mutate the store.
func (s *Store) List(ctx context.Context, sessionID string) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return slices.Clone(entries), nil
}

// Delete removes the transcript.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// Sessions returns the sessions with a transcript.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	slices.Sort(sessions)
	return sessions, nil
}
