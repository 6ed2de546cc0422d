package ports

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
)

// Session is the contract a front end operates against. It is implemented by
// driver.Driver. Calls are serialized: callers that share a session across
// goroutines go through session.Manager.
type Session interface {
	// ID returns the session identifier.
	ID() string

	// Submit checkpoints the current Worker and applies payload.
	Submit(ctx context.Context, payload string) (domain.Result, error)

	// Undo restores the most recent checkpoint.
	// Returns domain.ErrEmptyHistory when there is nothing to undo.
	Undo(ctx context.Context) error

	// Environment returns a copy of the current Worker's bindings in their
	// JSON-safe wire form (see domain.Portable).
	Environment(ctx context.Context) (map[string]any, error)

	// Transcript returns the journal entries of the units that can still be
	// undone, oldest first.
	Transcript(ctx context.Context) ([]domain.Entry, error)

	// Depth returns the current undo stack length.
	Depth() int

	// Shutdown terminates every process of the session.
	Shutdown(ctx context.Context) error
}
