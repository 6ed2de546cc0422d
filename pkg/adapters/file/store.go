package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/rewind/pkg/domain"
)

// Store implements ports.Journal using the local filesystem.
// It stores one JSON transcript per session in a configured directory.
// Not safe for concurrent writers to the same session; session.Manager
// serializes access per session.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".rewind/journal".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".rewind", "journal")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.BasePath, sessionID+".json")
}

// Append records an entry at the end of the session transcript.
func (s *Store) Append(ctx context.Context, sessionID string, entry domain.Entry) error {
	entries, err := s.read(sessionID)
	if err != nil && err != domain.ErrSessionNotFound {
		return err
	}
	return s.write(sessionID, append(entries, entry))
}

// Pop removes and returns the most recent entry.
func (s *Store) Pop(ctx context.Context, sessionID string) (domain.Entry, error) {
	entries, err := s.read(sessionID)
	if err != nil && err != domain.ErrSessionNotFound {
		return domain.Entry{}, err
	}
	if len(entries) == 0 {
		return domain.Entry{}, domain.ErrEmptyHistory
	}

	last := entries[len(entries)-1]
	if len(entries) == 1 {
		return last, s.Delete(ctx, sessionID)
	}
	return last, s.write(sessionID, entries[:len(entries)-1])
}

// Shift removes and returns the oldest entry.
func (s *Store) Shift(ctx context.Context, sessionID string) (domain.Entry, error) {
	entries, err := s.read(sessionID)
	if err != nil && err != domain.ErrSessionNotFound {
		return domain.Entry{}, err
	}
	if len(entries) == 0 {
		return domain.Entry{}, domain.ErrEmptyHistory
	}

	if len(entries) == 1 {
		return entries[0], s.Delete(ctx, sessionID)
	}
	return entries[0], s.write(sessionID, entries[1:])
}

// List returns the transcript, oldest first.
func (s *Store) List(ctx context.Context, sessionID string) ([]domain.Entry, error) {
	return s.read(sessionID)
}

// Delete removes the transcript file.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal file: %w", err)
	}
	return nil
}

// Sessions lists the transcripts in the base directory.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	files, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list journal directory: %w", err)
	}

	var sessions []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "tmp-") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".json"))
	}
	return sessions, nil
}

func (s *Store) read(sessionID string) ([]domain.Entry, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}

	var entries []domain.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	return entries, nil
}

// write persists the transcript atomically: temp file in the same directory,
// fsync, then rename over the destination.
func (s *Store) write(sessionID string, entries []domain.Entry) error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure journal directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+sessionID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(sessionID)); err != nil {
		return fmt.Errorf("failed to rename temp file to journal: %w", err)
	}
	return nil
}
