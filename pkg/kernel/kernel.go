package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/channel"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/protocol"
)

// Snapshotter creates a suspended copy of the Worker holding env.
// It returns the snapshot's pid only once the copy is parked and can be resumed.
type Snapshotter interface {
	Snapshot(ctx context.Context, env *domain.Environment) (int, error)
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithEnvironment sets the initial environment (a restored snapshot's).
func WithEnvironment(env *domain.Environment) Option {
	return func(k *Kernel) {
		k.env = env
	}
}

// WithSnapshotter configures how checkpoints are created.
func WithSnapshotter(s Snapshotter) Option {
	return func(k *Kernel) {
		k.snapshotter = s
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithOutput sets where the output of fire-and-forget units is written.
func WithOutput(w io.Writer) Option {
	return func(k *Kernel) {
		k.output = w
	}
}

// WithReaper replaces the dead-children sweep run before each dispatch.
func WithReaper(fn func()) Option {
	return func(k *Kernel) {
		k.reap = fn
	}
}

// Kernel is a Worker process' view of itself.
type Kernel struct {
	pid         int
	engine      ports.Engine
	env         *domain.Environment
	endpoint    *channel.Endpoint
	snapshotter Snapshotter
	logger      *slog.Logger
	output      io.Writer
	reap        func()
	state       domain.WorkerState
}

// New creates a Kernel around an engine and its worker-side endpoint.
func New(engine ports.Engine, endpoint *channel.Endpoint, opts ...Option) *Kernel {
	k := &Kernel{
		pid:      os.Getpid(),
		engine:   engine,
		env:      domain.NewEnvironment(),
		endpoint: endpoint,
		logger:   logging.NewNop(),
		output:   os.Stdout,
		state:    domain.StateSuspended,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.reap == nil {
		k.reap = func() { sweepChildren(k.logger) }
	}
	return k
}

// PID returns the Worker's own process id.
func (k *Kernel) PID() int {
	return k.pid
}

// State returns the Worker's lifecycle state.
func (k *Kernel) State() domain.WorkerState {
	return k.state
}

// Environment returns the live environment.
func (k *Kernel) Environment() *domain.Environment {
	return k.env
}

// Boot announces a freshly spawned Worker with Ready and starts dispatching.
func (k *Kernel) Boot(ctx context.Context) error {
	if err := k.endpoint.Send(protocol.Ready{PID: k.pid}); err != nil {
		return err
	}
	k.logger.Debug("worker ready")
	return k.Run(ctx)
}

// Resume turns a parked snapshot into the Running Worker: it refreshes its own
// identity, reports CheckpointRestored and starts dispatching.
func (k *Kernel) Resume(ctx context.Context) error {
	k.pid = os.Getpid()
	if err := k.endpoint.Send(protocol.CheckpointRestored{PID: k.pid}); err != nil {
		return err
	}
	k.logger.Debug("snapshot restored", "bindings", k.env.Len())
	return k.Run(ctx)
}

// Run is the dispatch loop. It returns nil after Shutdown or when the Driver
// closed the channel, and an error on a protocol violation.
func (k *Kernel) Run(ctx context.Context) error {
	k.state = domain.StateRunning
	defer func() {
		k.state = domain.StateTerminated
		k.reap()
	}()

	for {
		k.reap()

		msg, err := k.endpoint.Receive()
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				k.logger.Debug("driver closed the channel")
				return nil
			}
			return err
		}

		done, err := k.dispatch(ctx, msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (k *Kernel) dispatch(ctx context.Context, msg protocol.Message) (bool, error) {
	switch m := msg.(type) {
	case protocol.ApplyUnit:
		return false, k.apply(ctx, m)

	case protocol.Checkpoint:
		pid, err := k.snapshotter.Snapshot(ctx, k.env)
		if err != nil {
			k.logger.Error("checkpoint failed", "err", err)
			return false, k.endpoint.Send(protocol.CheckpointFailed{Reason: checkpointReason(err)})
		}
		k.logger.Debug("checkpoint created", "snapshot", pid)
		return false, k.endpoint.Send(protocol.CheckpointCreated{PID: pid})

	case protocol.Inspect:
		return false, k.endpoint.Send(protocol.Environment{Bindings: k.env.Portable()})

	case protocol.Shutdown:
		k.logger.Debug("worker shutting down")
		return true, k.endpoint.Send(protocol.ShutdownAcknowledged{})

	default:
		return false, &domain.ProtocolError{Want: "request", Got: string(msg.Kind())}
	}
}

func (k *Kernel) apply(ctx context.Context, m protocol.ApplyUnit) error {
	start := time.Now()
	output, err := k.engine.Apply(ctx, k.env, m.Payload)

	var failure string
	if err != nil {
		var execErr *domain.ExecutionError
		if !errors.As(err, &execErr) {
			err = &domain.ExecutionError{Message: err.Error()}
		}
		failure = err.Error()
	}
	k.logger.Debug("unit applied", "duration", time.Since(start), "failed", failure != "")

	if m.Await {
		return k.endpoint.Send(protocol.Acknowledged{Output: output, Failure: failure})
	}

	if output != "" {
		fmt.Fprint(k.output, output)
	}
	if failure != "" {
		fmt.Fprintln(k.output, "error:", failure)
	}
	return nil
}

// checkpointReason strips the duplication sentinel from err; the Driver adds
// it back when it turns the reply into an error.
func checkpointReason(err error) string {
	reason := strings.TrimPrefix(err.Error(), domain.ErrDuplication.Error())
	return strings.TrimPrefix(reason, ": ")
}
