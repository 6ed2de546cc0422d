package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/rewind/pkg/channel"
	"github.com/aretw0/rewind/pkg/domain"
	"golang.org/x/sys/unix"
)

// ResumeSignal is delivered by the Driver to wake a parked snapshot.
const ResumeSignal = syscall.SIGCONT

// ErrOrphaned is returned by Park when the Driver exited while the snapshot
// was still suspended.
var ErrOrphaned = errors.New("driver is gone")

// ProcessSnapshotter creates snapshots by spawning the current executable in
// the snapshot role. The child inherits the channel descriptors at RequestFD
// and ResponseFD, receives the encoded environment on StateFD and reports it
// is parked by writing one byte on ReadyFD.
type ProcessSnapshotter struct {
	Executable string
	Files      *channel.Files
	Env        []string
	Stdout     *os.File
	Stderr     *os.File
}

// Snapshot implements Snapshotter.
func (s *ProcessSnapshotter) Snapshot(ctx context.Context, env *domain.Environment) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := env.Encode()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDuplication, err)
	}

	stateR, stateW, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDuplication, err)
	}
	readyR, readyW, err := os.Pipe()
	if err != nil {
		stateR.Close()
		stateW.Close()
		return 0, fmt.Errorf("%w: %v", domain.ErrDuplication, err)
	}
	defer readyR.Close()

	// The snapshot must outlive ctx: it is a checkpoint, not a task.
	cmd := exec.Command(s.Executable)
	cmd.Env = ChildEnv(s.Env, RoleSnapshot)
	cmd.ExtraFiles = append(s.Files.Extra(), stateR, readyW)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err = cmd.Start()
	stateR.Close()
	readyW.Close()
	if err != nil {
		stateW.Close()
		return 0, fmt.Errorf("%w: %v", domain.ErrDuplication, err)
	}
	pid := cmd.Process.Pid

	_, werr := stateW.Write(data)
	stateW.Close()

	token := make([]byte, 1)
	_, rerr := io.ReadFull(readyR, token)

	if werr != nil || rerr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return 0, fmt.Errorf("%w: snapshot %d did not park: %v", domain.ErrDuplication, pid, errors.Join(werr, rerr))
	}

	// Reaped by the Driver (subreaper) or by sweepChildren, never by cmd.Wait.
	_ = cmd.Process.Release()
	return pid, nil
}

// ParkOptions configure Park.
type ParkOptions struct {
	DriverPID int
	Interval  time.Duration
	Logger    *slog.Logger
}

// Park is the snapshot side of a checkpoint. It reads the environment from
// state, arms the resume signal, reports readiness on ready and then blocks
// until the signal arrives.
//
// Readiness is reported only after the signal is armed, so a resume sent as
// soon as the Worker replied CheckpointCreated cannot be lost.
func Park(ctx context.Context, state io.Reader, ready io.WriteCloser, opts ParkOptions) (*domain.Environment, error) {
	data, err := io.ReadAll(state)
	if err != nil {
		ready.Close()
		return nil, fmt.Errorf("failed to read snapshot state: %w", err)
	}
	env, err := domain.DecodeEnvironment(data)
	if err != nil {
		ready.Close()
		return nil, fmt.Errorf("failed to decode snapshot state: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, ResumeSignal)
	defer signal.Stop(sigs)

	_, err = ready.Write([]byte{1})
	ready.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to report readiness: %w", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigs:
			return env, nil
		case <-ticker.C:
			if opts.DriverPID > 0 && !alive(opts.DriverPID) {
				if opts.Logger != nil {
					opts.Logger.Debug("driver exited while suspended", "driver", opts.DriverPID)
				}
				return nil, ErrOrphaned
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// sweepChildren reaps every exited child without blocking. Snapshots whose
// parent was a Worker that already exited are reparented to the Driver.
func sweepChildren(logger *slog.Logger) {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			return
		}
		logger.Debug("reaped child", "child", pid, "status", status.ExitStatus())
	}
}
