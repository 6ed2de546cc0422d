package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/channel"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/kernel"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/protocol"
	"github.com/google/uuid"
)

// Driver orchestrates one session: the current Worker plus the undo stack of
// suspended snapshots. Methods are safe for concurrent use but run one at a
// time, since the channel allows a single outstanding request.
type Driver struct {
	id             string
	engine         string
	executable     string
	workerLogLevel string
	maxHistory     int
	timeout        time.Duration
	syncApply      bool
	stdout         *os.File
	stderr         *os.File

	logger  *slog.Logger
	metrics *Metrics
	journal ports.Journal
	hooks   domain.LifecycleHooks

	mu       sync.Mutex
	endpoint *channel.Endpoint
	inbox    chan inbound
	done     chan struct{}
	current  int
	stack    []int
	seq      int
	closed   bool
}

// Start creates a session: it spawns the initial Worker and waits until it
// reports Ready.
func Start(ctx context.Context, opts ...Option) (*Driver, error) {
	d := &Driver{
		engine:    kernel.DefaultEngine,
		syncApply: true,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logging.NewNop(),
		inbox:     make(chan inbound, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.id == "" {
		d.id = uuid.Must(uuid.NewV7()).String()
	}
	if d.journal == nil {
		d.journal = memory.NewStore()
	}
	if d.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve worker executable: %w", err)
		}
		d.executable = exe
	}
	d.logger = d.logger.With("session", d.id)

	if err := becomeSubreaper(); err != nil {
		d.logger.Warn("cannot become child subreaper", "err", err)
	}

	endpoint, files, err := channel.New()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(d.executable)
	cmd.Env = kernel.ChildEnv(append(os.Environ(),
		kernel.EnvEngine+"="+d.engine,
		kernel.EnvDriverPID+"="+strconv.Itoa(os.Getpid()),
		kernel.EnvLogLevel+"="+d.workerLogLevel,
	), kernel.RoleWorker)
	cmd.ExtraFiles = files.Extra()
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err = cmd.Start()
	files.Close()
	if err != nil {
		endpoint.Close()
		return nil, fmt.Errorf("failed to spawn worker: %w", err)
	}
	d.current = cmd.Process.Pid
	_ = cmd.Process.Release()

	d.endpoint = endpoint
	go d.pump()

	msg, err := d.await(ctx)
	if err != nil {
		return nil, d.abort(ctx, err)
	}
	ready, ok := msg.(protocol.Ready)
	if !ok {
		return nil, d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindReady), Got: string(msg.Kind())})
	}
	if ready.PID != d.current {
		return nil, d.abort(ctx, &domain.ProtocolError{
			Want: fmt.Sprintf("ready from %d", d.current),
			Got:  fmt.Sprintf("ready from %d", ready.PID),
		})
	}

	d.logger.Info("session started", "worker", d.current, "engine", d.engine)
	return d, nil
}

// ID returns the session identifier.
func (d *Driver) ID() string {
	return d.id
}

// Current returns the pid of the Running Worker.
func (d *Driver) Current() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Depth returns the number of snapshots on the undo stack.
func (d *Driver) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.stack)
}

// History returns a copy of the undo stack, oldest first.
func (d *Driver) History() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.stack)
}

// Closed reports whether the session was shut down or aborted.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Submit checkpoints the current Worker and applies payload to its environment.
// An execution failure is returned in the Result, not as an error: its
// checkpoint stays on the stack and can be undone.
func (d *Driver) Submit(ctx context.Context, payload string) (domain.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return domain.Result{}, domain.ErrSessionClosed
	}

	msg, err := d.call(ctx, protocol.Checkpoint{})
	if err != nil {
		return domain.Result{}, d.abort(ctx, err)
	}

	var snapshot int
	switch m := msg.(type) {
	case protocol.CheckpointCreated:
		snapshot = m.PID
	case protocol.CheckpointFailed:
		return domain.Result{}, d.abort(ctx, checkpointError(m.Reason))
	default:
		return domain.Result{}, d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindCheckpointCreated), Got: string(msg.Kind())})
	}

	d.stack = append(d.stack, snapshot)
	if d.metrics != nil {
		d.metrics.Checkpoints.Inc()
		d.metrics.Snapshots.Inc()
	}
	if d.hooks.OnCheckpoint != nil {
		d.hooks.OnCheckpoint(ctx, &domain.SnapshotEvent{EventBase: d.event(domain.EventCheckpoint), PID: snapshot, Depth: len(d.stack)})
	}
	d.logger.Debug("checkpoint created", "snapshot", snapshot, "depth", len(d.stack))

	start := time.Now()
	result := domain.Result{Snapshot: snapshot}
	msg, err = d.call(ctx, protocol.ApplyUnit{Payload: payload, Await: d.syncApply})
	if err != nil {
		return domain.Result{}, d.abort(ctx, err)
	}
	if d.syncApply {
		ack, ok := msg.(protocol.Acknowledged)
		if !ok {
			return domain.Result{}, d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindAcknowledged), Got: string(msg.Kind())})
		}
		result.Output = ack.Output
		result.Failure = ack.Failure
	}
	duration := time.Since(start)

	if d.metrics != nil {
		d.metrics.ApplyDuration.Observe(duration.Seconds())
	}
	if d.hooks.OnApply != nil {
		d.hooks.OnApply(ctx, &domain.ApplyEvent{
			EventBase: d.event(domain.EventApply),
			Worker:    d.current,
			Payload:   payload,
			Failure:   result.Failure,
			Duration:  duration,
		})
	}

	d.prune(ctx)
	result.Depth = len(d.stack)

	d.seq++
	entry := domain.Entry{
		Seq:      d.seq,
		Payload:  payload,
		Output:   result.Output,
		Failure:  result.Failure,
		Snapshot: snapshot,
		At:       time.Now(),
	}
	if err := d.journal.Append(ctx, d.id, entry); err != nil {
		d.logger.Warn("failed to record unit", "err", err)
	}
	return result, nil
}

// Undo discards the most recent unit by shutting the current Worker down and
// resuming the snapshot taken before it.
func (d *Driver) Undo(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return domain.ErrSessionClosed
	}
	if len(d.stack) == 0 {
		return domain.ErrEmptyHistory
	}

	snapshot := d.stack[len(d.stack)-1]

	msg, err := d.call(ctx, protocol.Shutdown{})
	if err != nil {
		return d.abort(ctx, err)
	}
	if _, ok := msg.(protocol.ShutdownAcknowledged); !ok {
		return d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindShutdownAcknowledged), Got: string(msg.Kind())})
	}
	reap(d.current)
	previous := d.current

	d.stack = d.stack[:len(d.stack)-1]
	d.current = snapshot
	if d.metrics != nil {
		d.metrics.Snapshots.Dec()
	}

	if err := resume(snapshot); err != nil {
		return d.abort(ctx, fmt.Errorf("%w: cannot resume snapshot %d: %v", domain.ErrWorkerLost, snapshot, err))
	}

	msg, err = d.await(ctx)
	if err != nil {
		return d.abort(ctx, err)
	}
	restored, ok := msg.(protocol.CheckpointRestored)
	if !ok {
		return d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindCheckpointRestored), Got: string(msg.Kind())})
	}
	if restored.PID != snapshot {
		return d.abort(ctx, &domain.ProtocolError{
			Want: fmt.Sprintf("restore of %d", snapshot),
			Got:  fmt.Sprintf("restore of %d", restored.PID),
		})
	}

	if d.metrics != nil {
		d.metrics.Undos.Inc()
	}
	if d.hooks.OnRestore != nil {
		d.hooks.OnRestore(ctx, &domain.SnapshotEvent{EventBase: d.event(domain.EventRestore), PID: snapshot, Depth: len(d.stack)})
	}
	if _, err := d.journal.Pop(ctx, d.id); err != nil && !errors.Is(err, domain.ErrEmptyHistory) {
		d.logger.Warn("failed to drop unit from transcript", "err", err)
	}

	d.logger.Debug("snapshot restored", "worker", snapshot, "superseded", previous, "depth", len(d.stack))
	return nil
}

// Environment returns a copy of the current Worker's bindings in their wire
// form: non-finite numbers appear as {"$num": "+inf"} and the like (see
// domain.Portable), so the result can always be encoded as JSON.
func (d *Driver) Environment(ctx context.Context) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, domain.ErrSessionClosed
	}

	msg, err := d.call(ctx, protocol.Inspect{})
	if err != nil {
		return nil, d.abort(ctx, err)
	}
	env, ok := msg.(protocol.Environment)
	if !ok {
		return nil, d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindEnvironment), Got: string(msg.Kind())})
	}
	if env.Bindings == nil {
		return map[string]any{}, nil
	}
	return env.Bindings, nil
}

// Transcript returns the journal entries of the units still on the stack.
func (d *Driver) Transcript(ctx context.Context) ([]domain.Entry, error) {
	entries, err := d.journal.List(ctx, d.id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	return entries, err
}

// Shutdown kills every suspended snapshot, stops the current Worker and
// releases the channel. Calling it again is a no-op.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	for _, pid := range d.stack {
		if err := kill(pid); err != nil {
			d.logger.Warn("failed to kill snapshot", "snapshot", pid, "err", err)
		}
	}

	msg, err := d.call(ctx, protocol.Shutdown{})
	if err != nil {
		return d.abort(ctx, err)
	}
	if _, ok := msg.(protocol.ShutdownAcknowledged); !ok {
		return d.abort(ctx, &domain.ProtocolError{Want: string(protocol.KindShutdownAcknowledged), Got: string(msg.Kind())})
	}
	reap(d.current)

	// Snapshots left by the Worker are reparented once it exits.
	for _, pid := range d.stack {
		reap(pid)
	}
	if d.metrics != nil {
		d.metrics.Snapshots.Sub(float64(len(d.stack)))
	}

	d.logger.Info("session closed", "worker", d.current, "snapshots", len(d.stack))
	d.stack = nil
	d.release()
	return nil
}

// prune enforces the history bound by discarding the oldest snapshots.
func (d *Driver) prune(ctx context.Context) {
	for d.maxHistory > 0 && len(d.stack) > d.maxHistory {
		oldest := d.stack[0]
		d.stack = slices.Delete(d.stack, 0, 1)

		if err := kill(oldest); err != nil {
			d.logger.Warn("failed to kill snapshot", "snapshot", oldest, "err", err)
		}
		// The current Worker sweeps snapshots it spawned itself.
		reap(oldest)

		if d.metrics != nil {
			d.metrics.Pruned.Inc()
			d.metrics.Snapshots.Dec()
		}
		if d.hooks.OnPrune != nil {
			d.hooks.OnPrune(ctx, &domain.SnapshotEvent{EventBase: d.event(domain.EventPrune), PID: oldest, Depth: len(d.stack)})
		}
		if _, err := d.journal.Shift(ctx, d.id); err != nil && !errors.Is(err, domain.ErrEmptyHistory) {
			d.logger.Warn("failed to drop pruned unit from transcript", "err", err)
		}
		d.logger.Debug("snapshot pruned", "snapshot", oldest, "depth", len(d.stack))
	}
}

// checkpointError turns a CheckpointFailed reason into an ErrDuplication.
func checkpointError(reason string) error {
	if reason == "" {
		return domain.ErrDuplication
	}
	return fmt.Errorf("%w: %s", domain.ErrDuplication, reason)
}

// abort tears the session down after an unrecoverable error and returns cause.
func (d *Driver) abort(ctx context.Context, cause error) error {
	reason := abortReason(cause)
	d.logger.Error("session aborted", "reason", reason, "err", cause)

	pids := append([]int{d.current}, d.stack...)
	for _, pid := range pids {
		_ = kill(pid)
	}
	for _, pid := range pids {
		reap(pid)
	}

	if d.metrics != nil {
		d.metrics.Aborts.WithLabelValues(reason).Inc()
		d.metrics.Snapshots.Sub(float64(len(d.stack)))
	}
	if d.hooks.OnAbort != nil {
		d.hooks.OnAbort(context.WithoutCancel(ctx), &domain.AbortEvent{EventBase: d.event(domain.EventAbort), Reason: reason, Err: cause.Error()})
	}

	d.stack = nil
	d.release()
	return cause
}

func (d *Driver) release() {
	d.closed = true
	close(d.done)
	d.endpoint.Close()
}

func (d *Driver) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, SessionID: d.id}
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, domain.ErrDuplication):
		return "duplication"
	case errors.Is(err, domain.ErrWorkerLost):
		return "worker_lost"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "transport"
}
