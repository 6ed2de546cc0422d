package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalManager turns SIGINT and SIGTERM into context cancellation, so an
// interrupt cancels the request in flight rather than killing the process.
type SignalManager struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
func NewSignalManager(parent context.Context) *SignalManager {
	sm := &SignalManager{parent: parent}
	sm.Reset()
	return sm
}

// Context returns the current signal context.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Reset re-arms the signal listener.
// Should be called after a signal has been handled to capture subsequent signals.
func (sm *SignalManager) Reset() {
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(sm.parent, os.Interrupt, syscall.SIGTERM)
}

// Interrupted reports whether the current context was cancelled by a signal
// rather than by the parent.
func (sm *SignalManager) Interrupted() bool {
	return sm.ctx.Err() != nil && sm.parent.Err() == nil
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}
