package runner

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalManager_Lifecycle(t *testing.T) {
	sm := NewSignalManager(context.Background())
	defer sm.Stop()

	ctx1 := sm.Context()
	assert.NotNil(t, ctx1)
	assert.NoError(t, ctx1.Err())

	sm.Reset()
	ctx2 := sm.Context()
	assert.NotEqual(t, ctx1, ctx2, "Reset should generate a new context")
	assert.ErrorIs(t, ctx1.Err(), context.Canceled)
	assert.NoError(t, ctx2.Err())

	sm.Stop()
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)
}

func TestSignalManager_Interrupt(t *testing.T) {
	sm := NewSignalManager(context.Background())
	defer sm.Stop()

	assert.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-sm.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not cancel the context")
	}
	assert.True(t, sm.Interrupted())

	sm.Reset()
	assert.NoError(t, sm.Context().Err())
}

func TestSignalManager_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sm := NewSignalManager(parent)
	defer sm.Stop()

	cancel()
	assert.Error(t, sm.Context().Err())
	assert.False(t, sm.Interrupted())
}
