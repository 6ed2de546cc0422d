package driver

import (
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// Option configures a Driver.
type Option func(*Driver)

// WithEngine selects the execution engine the Worker runs.
func WithEngine(name string) Option {
	return func(d *Driver) {
		d.engine = name
	}
}

// WithExecutable sets the binary spawned as Worker. It must dispatch to
// kernel.Main when started in a child role. Defaults to the running executable.
func WithExecutable(path string) Option {
	return func(d *Driver) {
		d.executable = path
	}
}

// WithMaxHistory bounds the undo stack. When a push exceeds it, the oldest
// snapshot is killed and can no longer be restored. Zero means unbounded.
func WithMaxHistory(n int) Option {
	return func(d *Driver) {
		d.maxHistory = n
	}
}

// WithResponseTimeout bounds every wait for a Worker response. Zero waits forever.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.timeout = timeout
	}
}

// WithSyncApply controls whether Submit waits for the unit to be applied.
// When disabled the Worker writes the unit's output to its own stdout.
func WithSyncApply(sync bool) Option {
	return func(d *Driver) {
		d.syncApply = sync
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithWorkerLogLevel sets the log level passed to child processes.
func WithWorkerLogLevel(level string) Option {
	return func(d *Driver) {
		d.workerLogLevel = level
	}
}

// WithWorkerOutput sets the stdout and stderr inherited by child processes.
func WithWorkerOutput(stdout, stderr *os.File) Option {
	return func(d *Driver) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// WithMetrics records session activity into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithJournal records the transcript of applied units.
func WithJournal(journal ports.Journal) Option {
	return func(d *Driver) {
		d.journal = journal
	}
}

// WithSessionID sets the session identifier. Defaults to a UUIDv7.
func WithSessionID(id string) Option {
	return func(d *Driver) {
		d.id = id
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Driver) {
		d.hooks = hooks
	}
}
