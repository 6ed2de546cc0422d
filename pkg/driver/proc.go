package driver

import (
	"errors"

	"golang.org/x/sys/unix"
)

// kill delivers SIGKILL. A process that is already gone is not an error.
func kill(pid int) error {
	err := unix.Kill(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// resume delivers the resume signal to a parked snapshot.
func resume(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}

// reap blocks until pid has exited and releases its process table entry.
// ECHILD means it was reaped already or belongs to another parent.
func reap(pid int) {
	for {
		var status unix.WaitStatus
		_, err := unix.Wait4(pid, &status, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return
	}
}

// exited probes pid without blocking, reaping it if it is a dead child.
func exited(pid int) bool {
	var status unix.WaitStatus
	wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
	switch {
	case err == nil && wpid == pid:
		return true
	case errors.Is(err, unix.ECHILD):
		return !alive(pid)
	}
	return false
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
