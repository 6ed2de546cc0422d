package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCheckpoint EventType = "checkpoint"
	EventApply      EventType = "apply"
	EventRestore    EventType = "restore"
	EventPrune      EventType = "prune"
	EventAbort      EventType = "abort"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// SnapshotEvent reports a snapshot being created, restored or pruned.
type SnapshotEvent struct {
	EventBase
	PID   int `json:"pid"`
	Depth int `json:"depth"`
}

// ApplyEvent reports a unit of work applied by the current Worker.
type ApplyEvent struct {
	EventBase
	Worker   int           `json:"worker"`
	Payload  string        `json:"payload"`
	Failure  string        `json:"failure,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AbortEvent reports a session torn down after an unrecoverable error.
type AbortEvent struct {
	EventBase
	Reason string `json:"reason"`
	Err    string `json:"error"`
}

// LifecycleHooks defines callbacks for session observability.
type LifecycleHooks struct {
	OnCheckpoint func(context.Context, *SnapshotEvent)
	OnApply      func(context.Context, *ApplyEvent)
	OnRestore    func(context.Context, *SnapshotEvent)
	OnPrune      func(context.Context, *SnapshotEvent)
	OnAbort      func(context.Context, *AbortEvent)
}
