package runner

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
)

// ReplyKind tells a handler what a Reply carries.
type ReplyKind string

const (
	ReplyResult  ReplyKind = "result"  // Outcome of a submitted unit
	ReplyUndo    ReplyKind = "undo"    // A unit was discarded
	ReplyEnv     ReplyKind = "env"     // Current bindings
	ReplyHistory ReplyKind = "history" // Units that can still be undone
	ReplyHelp    ReplyKind = "help"    // Command reference (markdown)
	ReplyError   ReplyKind = "error"   // Recoverable error, the loop continues
	ReplyInfo    ReplyKind = "info"    // Status message
)

// Reply is one answer of the loop to the user.
type Reply struct {
	Kind     ReplyKind      `json:"kind"`
	Output   string         `json:"output,omitempty"`
	Failure  string         `json:"failure,omitempty"`
	Depth    int            `json:"depth"`
	Bindings map[string]any `json:"bindings,omitempty"`
	Entries  []domain.Entry `json:"entries,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between terminal, plain text and JSON modes.
type IOHandler interface {
	// Input reads one line. It returns io.EOF when the user is done and
	// ctx.Err() when ctx is cancelled while waiting.
	Input(ctx context.Context, prompt string) (string, error)

	// Output presents a reply.
	Output(ctx context.Context, reply Reply) error

	// SystemOutput presents a meta-message (banner, status, warnings).
	SystemOutput(ctx context.Context, msg string) error
}

// HistoryRecorder is implemented by handlers that keep a line history.
type HistoryRecorder interface {
	Record(unit string)
}
