package kernel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/aretw0/rewind/pkg/channel"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterEngine understands "inc", "fail" and "say <text>".
type counterEngine struct{}

func (counterEngine) Name() string { return "counter" }

func (counterEngine) Apply(_ context.Context, env *domain.Environment, payload string) (string, error) {
	switch {
	case payload == "inc":
		n, _ := env.Get("n")
		f, _ := n.(float64)
		env.Set("n", f+1)
		return "", nil
	case payload == "fail":
		env.Set("partial", true)
		return "", &domain.ExecutionError{Message: "boom"}
	case strings.HasPrefix(payload, "say "):
		return strings.TrimPrefix(payload, "say ") + "\n", nil
	}
	return "", errors.New("unknown unit")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	pid   int
	err   error
	taken []map[string]any
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, env *domain.Environment) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taken = append(f.taken, env.Snapshot())
	return f.pid, nil
}

type harness struct {
	driver *channel.Endpoint
	kernel *Kernel
	done   chan error
}

func start(t *testing.T, opts ...Option) *harness {
	t.Helper()
	driver, files, err := channel.New()
	require.NoError(t, err)
	worker := channel.Open(files)
	t.Cleanup(func() {
		driver.Close()
		worker.Close()
	})

	opts = append([]Option{WithReaper(func() {})}, opts...)
	k := New(counterEngine{}, worker, opts...)
	h := &harness{driver: driver, kernel: k, done: make(chan error, 1)}
	go func() { h.done <- k.Boot(context.Background()) }()

	msg, err := driver.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.Ready{PID: os.Getpid()}, msg)
	return h
}

func (h *harness) call(t *testing.T, req protocol.Message) protocol.Message {
	t.Helper()
	require.NoError(t, h.driver.Send(req))
	msg, err := h.driver.Receive()
	require.NoError(t, err)
	return msg
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("kernel did not stop")
		return nil
	}
}

func TestKernel_ApplyAndInspect(t *testing.T) {
	h := start(t)

	assert.Equal(t, protocol.Acknowledged{}, h.call(t, protocol.ApplyUnit{Payload: "inc", Await: true}))
	assert.Equal(t, protocol.Acknowledged{}, h.call(t, protocol.ApplyUnit{Payload: "inc", Await: true}))
	assert.Equal(t, protocol.Acknowledged{Output: "hi\n"}, h.call(t, protocol.ApplyUnit{Payload: "say hi", Await: true}))

	env := h.call(t, protocol.Inspect{})
	assert.Equal(t, protocol.Environment{Bindings: map[string]any{"n": 2.0}}, env)
	assert.Equal(t, domain.StateRunning, h.kernel.State())
}

func TestKernel_FailureIsReported(t *testing.T) {
	h := start(t)

	ack := h.call(t, protocol.ApplyUnit{Payload: "fail", Await: true})
	assert.Equal(t, protocol.Acknowledged{Failure: "boom"}, ack)

	ack = h.call(t, protocol.ApplyUnit{Payload: "bogus", Await: true})
	assert.Equal(t, protocol.Acknowledged{Failure: "unknown unit"}, ack)

	// The worker survives failures and keeps partial effects.
	env := h.call(t, protocol.Inspect{})
	assert.Equal(t, protocol.Environment{Bindings: map[string]any{"partial": true}}, env)
}

func TestKernel_FireAndForget(t *testing.T) {
	out := &lockedBuffer{}
	h := start(t, WithOutput(out))

	require.NoError(t, h.driver.Send(protocol.ApplyUnit{Payload: "say quiet"}))
	require.NoError(t, h.driver.Send(protocol.ApplyUnit{Payload: "fail"}))

	// Inspect is answered only after both units ran.
	env := h.call(t, protocol.Inspect{})
	assert.Equal(t, protocol.Environment{Bindings: map[string]any{"partial": true}}, env)
	assert.Equal(t, "quiet\nerror: boom\n", out.String())
}

func TestKernel_Checkpoint(t *testing.T) {
	snap := &fakeSnapshotter{pid: 4242}
	h := start(t, WithSnapshotter(snap))

	h.call(t, protocol.ApplyUnit{Payload: "inc", Await: true})
	assert.Equal(t, protocol.CheckpointCreated{PID: 4242}, h.call(t, protocol.Checkpoint{}))
	h.call(t, protocol.ApplyUnit{Payload: "inc", Await: true})

	snap.mu.Lock()
	defer snap.mu.Unlock()
	require.Len(t, snap.taken, 1)
	assert.Equal(t, map[string]any{"n": 1.0}, snap.taken[0])
}

func TestKernel_CheckpointFailed(t *testing.T) {
	snap := &fakeSnapshotter{err: fmt.Errorf("%w: fork: resource temporarily unavailable", domain.ErrDuplication)}
	h := start(t, WithSnapshotter(snap))

	msg := h.call(t, protocol.Checkpoint{})
	failed, ok := msg.(protocol.CheckpointFailed)
	require.True(t, ok, "got %T", msg)
	// Only the cause travels; the Driver names the failure.
	assert.Equal(t, "fork: resource temporarily unavailable", failed.Reason)
}

func TestKernel_CheckpointFailedBareSentinel(t *testing.T) {
	h := start(t, WithSnapshotter(&fakeSnapshotter{err: domain.ErrDuplication}))

	msg := h.call(t, protocol.Checkpoint{})
	failed, ok := msg.(protocol.CheckpointFailed)
	require.True(t, ok, "got %T", msg)
	assert.Empty(t, failed.Reason)
}

func TestKernel_Shutdown(t *testing.T) {
	h := start(t)

	assert.Equal(t, protocol.ShutdownAcknowledged{}, h.call(t, protocol.Shutdown{}))
	assert.NoError(t, h.wait(t))
	assert.Equal(t, domain.StateTerminated, h.kernel.State())
}

func TestKernel_DriverGone(t *testing.T) {
	h := start(t)

	require.NoError(t, h.driver.Close())
	assert.NoError(t, h.wait(t))
}

func TestKernel_UnexpectedMessage(t *testing.T) {
	h := start(t)

	require.NoError(t, h.driver.Send(protocol.Ready{PID: 1}))
	err := h.wait(t)
	assert.ErrorIs(t, err, domain.ErrProtocolViolation)
}

func TestKernel_Resume(t *testing.T) {
	driver, files, err := channel.New()
	require.NoError(t, err)
	worker := channel.Open(files)
	defer driver.Close()
	defer worker.Close()

	env := domain.NewEnvironment()
	env.Set("n", 7.0)
	k := New(counterEngine{}, worker, WithEnvironment(env), WithReaper(func() {}))
	assert.Equal(t, domain.StateSuspended, k.State())

	done := make(chan error, 1)
	go func() { done <- k.Resume(context.Background()) }()

	msg, err := driver.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.CheckpointRestored{PID: os.Getpid()}, msg)

	require.NoError(t, driver.Send(protocol.Inspect{}))
	msg, err = driver.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.Environment{Bindings: map[string]any{"n": 7.0}}, msg)

	require.NoError(t, driver.Send(protocol.Shutdown{}))
	_, err = driver.Receive()
	require.NoError(t, err)
	assert.NoError(t, <-done)
}

func TestPark_ResumeSignal(t *testing.T) {
	env := domain.NewEnvironment()
	env.Set("greeting", "hello")
	data, err := env.Encode()
	require.NoError(t, err)

	readyR, readyW, err := os.Pipe()
	require.NoError(t, err)
	defer readyR.Close()

	type result struct {
		env *domain.Environment
		err error
	}
	done := make(chan result, 1)
	go func() {
		got, err := Park(context.Background(), bytes.NewReader(data), readyW, ParkOptions{})
		done <- result{got, err}
	}()

	// The signal is armed once readiness is reported.
	token := make([]byte, 1)
	_, err = readyR.Read(token)
	require.NoError(t, err)
	require.NoError(t, syscall.Kill(os.Getpid(), ResumeSignal))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "hello", r.env.Bindings["greeting"])
	case <-time.After(5 * time.Second):
		t.Fatal("park did not return after the resume signal")
	}
}

func TestPark_Orphaned(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	gone := cmd.ProcessState.Pid()

	data, err := domain.NewEnvironment().Encode()
	require.NoError(t, err)
	readyR, readyW, err := os.Pipe()
	require.NoError(t, err)
	defer readyR.Close()

	_, err = Park(context.Background(), bytes.NewReader(data), readyW, ParkOptions{
		DriverPID: gone,
		Interval:  10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrOrphaned)
}

func TestPark_BadState(t *testing.T) {
	readyR, readyW, err := os.Pipe()
	require.NoError(t, err)
	defer readyR.Close()

	_, err = Park(context.Background(), strings.NewReader("{not json"), readyW, ParkOptions{})
	assert.Error(t, err)

	// The ready pipe is closed without a token so the Worker sees a failure.
	n, _ := readyR.Read(make([]byte, 1))
	assert.Zero(t, n)
}

func TestChildEnv(t *testing.T) {
	env := ChildEnv([]string{"HOME=/root", EnvRole + "=worker", "X=1"}, RoleSnapshot)
	assert.Equal(t, []string{"HOME=/root", "X=1", EnvRole + "=snapshot"}, env)
}
