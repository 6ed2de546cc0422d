package testutils

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// FakeSession implements ports.Session in memory. Units are "name = value"
// assignments, "fail" (raises an execution failure), "sleep <duration>" or
// "print <text>". Each Submit snapshots the bindings, so Undo behaves like
// the real Driver without spawning processes.
type FakeSession struct {
	mu       sync.Mutex
	id       string
	bindings map[string]any
	stack    []map[string]any
	entries  []domain.Entry
	seq      int
	closed   bool

	inFlight    atomic.Int32
	MaxInFlight atomic.Int32 // Highest number of concurrent calls observed
}

// NewFakeSession creates an empty fake session.
func NewFakeSession(id string) *FakeSession {
	return &FakeSession{id: id, bindings: map[string]any{}}
}

func (f *FakeSession) enter() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.MaxInFlight.Load()
		if n <= max || f.MaxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *FakeSession) ID() string { return f.id }

func (f *FakeSession) Submit(ctx context.Context, payload string) (domain.Result, error) {
	defer f.enter()()

	if d, ok := strings.CutPrefix(payload, "sleep "); ok {
		wait, err := time.ParseDuration(d)
		if err != nil {
			return domain.Result{}, err
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.Result{}, domain.ErrSessionClosed
	}

	f.stack = append(f.stack, maps.Clone(f.bindings))
	var res domain.Result
	switch {
	case payload == "fail":
		res.Failure = "boom"
	case strings.HasPrefix(payload, "print "):
		res.Output = strings.TrimPrefix(payload, "print ") + "\n"
	case strings.Contains(payload, "="):
		name, value, _ := strings.Cut(payload, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			f.bindings[name] = n
		} else {
			f.bindings[name] = value
		}
	}
	res.Depth = len(f.stack)
	res.Snapshot = 1000 + res.Depth
	f.seq++
	f.entries = append(f.entries, domain.Entry{
		Seq:      f.seq,
		Payload:  payload,
		Output:   res.Output,
		Failure:  res.Failure,
		Snapshot: res.Snapshot,
		At:       time.Now(),
	})
	return res, nil
}

func (f *FakeSession) Undo(ctx context.Context) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrSessionClosed
	}
	if len(f.stack) == 0 {
		return domain.ErrEmptyHistory
	}
	f.bindings = f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	f.entries = f.entries[:len(f.entries)-1]
	return nil
}

func (f *FakeSession) Environment(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, domain.ErrSessionClosed
	}
	return maps.Clone(f.bindings), nil
}

func (f *FakeSession) Transcript(ctx context.Context) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Entry(nil), f.entries...), nil
}

func (f *FakeSession) Depth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stack)
}

func (f *FakeSession) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Shutdown was called.
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeFactory returns a session factory and the sessions it created, by ID.
// Starting a session named "broken" fails.
func FakeFactory() (func(context.Context, string) (ports.Session, error), *sync.Map) {
	created := &sync.Map{}
	return func(_ context.Context, id string) (ports.Session, error) {
		if id == "broken" {
			return nil, fmt.Errorf("worker failed to start")
		}
		s := NewFakeSession(id)
		created.Store(id, s)
		return s, nil
	}, created
}
