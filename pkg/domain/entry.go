package domain

import "time"

// Entry is the transcript record of one applied unit of work.
type Entry struct {
	Seq      int       `json:"seq"`
	Payload  string    `json:"payload"`
	Output   string    `json:"output,omitempty"`
	Failure  string    `json:"failure,omitempty"`
	Snapshot int       `json:"snapshot_pid"`
	At       time.Time `json:"at"`
}

// Failed reports whether the unit raised an execution failure.
func (e Entry) Failed() bool {
	return e.Failure != ""
}

// Result is what a Submit hands back to the front end.
type Result struct {
	// Output is whatever the unit printed or evaluated to.
	Output string
	// Failure holds the execution failure message, if any. A failed unit keeps
	// its checkpoint and can still be undone.
	Failure string
	// Snapshot is the pid of the checkpoint taken before the unit ran.
	Snapshot int
	// Depth is the undo stack length after the unit.
	Depth int
}

// Failed reports whether the unit raised an execution failure.
func (r Result) Failed() bool {
	return r.Failure != ""
}
