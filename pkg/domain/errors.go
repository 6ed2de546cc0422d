package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyHistory is returned by Undo when no checkpoint is left to restore.
var ErrEmptyHistory = errors.New("nothing to undo")

// ErrProtocolViolation marks an unexpected message kind or order on the channel.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrDuplication is returned when a Worker could not create a snapshot.
var ErrDuplication = errors.New("process duplication failed")

// ErrWorkerLost is returned when the awaited Worker exited without answering.
var ErrWorkerLost = errors.New("worker lost")

// ErrTimeout is returned when a response did not arrive within the configured timeout.
var ErrTimeout = errors.New("response timeout")

// ErrSessionClosed is returned by every operation after Shutdown or an abort.
var ErrSessionClosed = errors.New("session closed")

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session under an ID already in use.
var ErrSessionExists = errors.New("session already exists")

// ErrUnknownEngine is returned when no execution engine is registered under a name.
var ErrUnknownEngine = errors.New("unknown execution engine")

// ProtocolError describes a protocol violation observed by either side.
type ProtocolError struct {
	Want string
	Got  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation: expected %s, got %s", e.Want, e.Got)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolViolation
}

// ExecutionError wraps a failure raised by the execution engine while applying
// a unit of work. It never crosses the process boundary as a fault; the Worker
// carries its message back in the acknowledgement.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}
