package ports

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
)

// Journal persists the transcript of the units applied in a session.
// The transcript mirrors the undo stack: Append on Submit, Pop on Undo and
// Shift when the oldest snapshot is pruned.
type Journal interface {
	// Append records an applied unit at the end of the session transcript.
	Append(ctx context.Context, sessionID string, entry domain.Entry) error

	// Pop removes and returns the most recent entry.
	// Returns domain.ErrEmptyHistory if the transcript is empty.
	Pop(ctx context.Context, sessionID string) (domain.Entry, error)

	// Shift removes and returns the oldest entry.
	// Returns domain.ErrEmptyHistory if the transcript is empty.
	Shift(ctx context.Context, sessionID string) (domain.Entry, error)

	// List returns the transcript, oldest first.
	// Returns domain.ErrSessionNotFound if the session has no transcript; a
	// transcript emptied by Pop no longer exists.
	List(ctx context.Context, sessionID string) ([]domain.Entry, error)

	// Delete removes the transcript of a session.
	Delete(ctx context.Context, sessionID string) error

	// Sessions lists the sessions with a transcript.
	Sessions(ctx context.Context) ([]string, error)
}
