package kernel

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/channel"
	"github.com/aretw0/rewind/pkg/registry"
)

// Environment variables read by child processes.
const (
	EnvRole      = "REWIND_ROLE"
	EnvEngine    = "REWIND_ENGINE"
	EnvDriverPID = "REWIND_DRIVER_PID"
	EnvLogLevel  = "REWIND_LOG_LEVEL"
)

// Roles of a child process.
const (
	RoleWorker   = "worker"
	RoleSnapshot = "snapshot"
)

// Descriptors a snapshot inherits next to the channel.
const (
	StateFD = 5
	ReadyFD = 6
)

// DefaultEngine is used when EnvEngine is unset.
const DefaultEngine = "lua"

// IsChild reports whether the current process was spawned as a Worker or a
// snapshot. Executables that embed a Driver must check it first thing in main
// and hand control to Main.
func IsChild() bool {
	switch os.Getenv(EnvRole) {
	case RoleWorker, RoleSnapshot:
		return true
	}
	return false
}

// ChildEnv returns base with the role variable set to role.
func ChildEnv(base []string, role string) []string {
	prefix := EnvRole + "="
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	return append(env, prefix+role)
}

// Main runs the child side of the process and returns its exit code.
func Main(reg *registry.Registry) int {
	role := os.Getenv(EnvRole)
	logger := logging.New(logging.ParseLevel(os.Getenv(EnvLogLevel))).
		With("role", role, "pid", os.Getpid())

	name := os.Getenv(EnvEngine)
	if name == "" {
		name = DefaultEngine
	}
	engine, err := reg.New(name)
	if err != nil {
		logger.Error("cannot start worker", "err", err)
		return 2
	}

	endpoint, files, err := channel.Inherit()
	if err != nil {
		logger.Error("cannot start worker", "err", err)
		return 2
	}
	defer endpoint.Close()

	exe, err := os.Executable()
	if err != nil {
		logger.Error("cannot resolve executable", "err", err)
		return 2
	}

	opts := []Option{
		WithLogger(logger),
		WithSnapshotter(&ProcessSnapshotter{
			Executable: exe,
			Files:      files,
			Env:        os.Environ(),
			Stdout:     os.Stdout,
			Stderr:     os.Stderr,
		}),
	}

	ctx := context.Background()
	switch role {
	case RoleWorker:
		err = New(engine, endpoint, opts...).Boot(ctx)

	case RoleSnapshot:
		driverPID, _ := strconv.Atoi(os.Getenv(EnvDriverPID))
		state := os.NewFile(StateFD, "rewind-state")
		ready := os.NewFile(ReadyFD, "rewind-ready")
		if state == nil || ready == nil {
			logger.Error("snapshot descriptors not inherited")
			return 2
		}
		env, perr := Park(ctx, state, ready, ParkOptions{DriverPID: driverPID, Logger: logger})
		state.Close()
		if perr != nil {
			logger.Debug("snapshot discarded", "err", perr)
			return 0
		}
		err = New(engine, endpoint, append(opts, WithEnvironment(env))...).Resume(ctx)
	}

	if err != nil {
		logger.Error("worker failed", "err", err)
		return 1
	}
	return 0
}
