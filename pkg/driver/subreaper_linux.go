package driver

import "golang.org/x/sys/unix"

// becomeSubreaper makes snapshots orphaned by an exited Worker children of the
// Driver, so they can be reaped here.
func becomeSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}
