package observability

import (
	"context"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
)

// Stream broadcasts lifecycle events to live subscribers. Publishing never
// blocks a Driver: a subscriber whose buffer is full misses the event.
type Stream struct {
	mu     sync.Mutex
	subs   map[chan any]struct{}
	buffer int
}

// NewStream creates a Stream whose subscribers buffer up to buffer events.
func NewStream(buffer int) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream{
		subs:   make(map[chan any]struct{}),
		buffer: buffer,
	}
}

// Hooks returns lifecycle hooks that publish every event to the Stream.
// Events are the *domain.SnapshotEvent, *domain.ApplyEvent and
// *domain.AbortEvent values the Driver reports.
func (s *Stream) Hooks() domain.LifecycleHooks {
	snapshot := func(_ context.Context, e *domain.SnapshotEvent) { s.Publish(e) }
	return domain.LifecycleHooks{
		OnCheckpoint: snapshot,
		OnRestore:    snapshot,
		OnPrune:      snapshot,
		OnApply:      func(_ context.Context, e *domain.ApplyEvent) { s.Publish(e) },
		OnAbort:      func(_ context.Context, e *domain.AbortEvent) { s.Publish(e) },
	}
}

// Subscribe returns a channel of events published from now on. The channel
// is closed once ctx is done.
func (s *Stream) Subscribe(ctx context.Context) <-chan any {
	ch := make(chan any, s.buffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Publish hands e to every subscriber with room for it.
func (s *Stream) Publish(e any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
