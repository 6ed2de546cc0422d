package observability

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnCheckpoint: func(context.Context, *domain.SnapshotEvent) { calls = append(calls, "a.checkpoint") },
		OnAbort:      func(context.Context, *domain.AbortEvent) { calls = append(calls, "a.abort") },
	}
	b := domain.LifecycleHooks{
		OnCheckpoint: func(context.Context, *domain.SnapshotEvent) { calls = append(calls, "b.checkpoint") },
	}

	hooks := Combine(a, domain.LifecycleHooks{}, b)
	ctx := context.Background()
	hooks.OnCheckpoint(ctx, &domain.SnapshotEvent{})
	hooks.OnAbort(ctx, &domain.AbortEvent{})

	assert.Equal(t, []string{"a.checkpoint", "b.checkpoint", "a.abort"}, calls)
	assert.Nil(t, hooks.OnApply)
	assert.Nil(t, hooks.OnPrune)
}

func TestStream_Delivers(t *testing.T) {
	s := NewStream(4)
	ctx, cancel := context.WithCancel(context.Background())
	events := s.Subscribe(ctx)
	require.Equal(t, 1, s.Subscribers())

	hooks := s.Hooks()
	hooks.OnCheckpoint(ctx, &domain.SnapshotEvent{PID: 7})
	hooks.OnApply(ctx, &domain.ApplyEvent{Payload: "x = 1"})

	first := <-events
	assert.Equal(t, 7, first.(*domain.SnapshotEvent).PID)
	second := <-events
	assert.Equal(t, "x = 1", second.(*domain.ApplyEvent).Payload)

	cancel()
	for range events {
	}
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStream_DropsWhenFull(t *testing.T) {
	s := NewStream(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Subscribe(ctx)

	s.Publish("one")
	s.Publish("two") // dropped, buffer is full

	assert.Equal(t, "one", <-events)
	select {
	case e := <-events:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}
