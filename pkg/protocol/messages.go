package protocol

// Kind is the discriminant of a message envelope.
type Kind string

// Requests (Driver -> Worker).
const (
	KindApply      Kind = "apply"
	KindCheckpoint Kind = "checkpoint"
	KindShutdown   Kind = "shutdown"
	KindInspect    Kind = "inspect"
)

// Responses (Worker -> Driver).
const (
	KindReady                Kind = "ready"
	KindAcknowledged         Kind = "acknowledged"
	KindCheckpointCreated    Kind = "checkpoint_created"
	KindCheckpointFailed     Kind = "checkpoint_failed"
	KindCheckpointRestored   Kind = "checkpoint_restored"
	KindShutdownAcknowledged Kind = "shutdown_acknowledged"
	KindEnvironment          Kind = "environment"
)

// Message is any value that can travel over the channel.
type Message interface {
	Kind() Kind
}

// Request is a message sent by the Driver.
type Request interface {
	Message
	// ExpectsResponse reports whether the Driver must block for a reply.
	ExpectsResponse() bool
}

// ApplyUnit asks the Worker to apply a unit of work to its environment.
// When Await is set the Worker replies with Acknowledged.
type ApplyUnit struct {
	Payload string `json:"payload"`
	Await   bool   `json:"await,omitempty"`
}

func (ApplyUnit) Kind() Kind               { return KindApply }
func (m ApplyUnit) ExpectsResponse() bool { return m.Await }

// Checkpoint asks the Worker to snapshot itself.
type Checkpoint struct{}

func (Checkpoint) Kind() Kind            { return KindCheckpoint }
func (Checkpoint) ExpectsResponse() bool { return true }

// Shutdown asks the Worker to acknowledge and exit.
type Shutdown struct{}

func (Shutdown) Kind() Kind            { return KindShutdown }
func (Shutdown) ExpectsResponse() bool { return true }

// Inspect asks the Worker for a copy of its bindings.
type Inspect struct{}

func (Inspect) Kind() Kind            { return KindInspect }
func (Inspect) ExpectsResponse() bool { return true }

// Ready is sent once by a freshly spawned Worker.
type Ready struct {
	PID int `json:"pid"`
}

func (Ready) Kind() Kind { return KindReady }

// Acknowledged answers an awaited ApplyUnit.
type Acknowledged struct {
	Output  string `json:"output,omitempty"`
	Failure string `json:"failure,omitempty"`
}

func (Acknowledged) Kind() Kind { return KindAcknowledged }

// CheckpointCreated carries the pid of the new suspended snapshot.
type CheckpointCreated struct {
	PID int `json:"pid"`
}

func (CheckpointCreated) Kind() Kind { return KindCheckpointCreated }

// CheckpointFailed reports a duplication failure.
type CheckpointFailed struct {
	Reason string `json:"reason"`
}

func (CheckpointFailed) Kind() Kind { return KindCheckpointFailed }

// CheckpointRestored is sent by a snapshot after it has been resumed.
type CheckpointRestored struct {
	PID int `json:"pid"`
}

func (CheckpointRestored) Kind() Kind { return KindCheckpointRestored }

// ShutdownAcknowledged is the last message a Worker sends before exiting.
type ShutdownAcknowledged struct{}

func (ShutdownAcknowledged) Kind() Kind { return KindShutdownAcknowledged }

// Environment answers Inspect.
type Environment struct {
	Bindings map[string]any `json:"bindings"`
}

func (Environment) Kind() Kind { return KindEnvironment }

// IsRequest reports whether k names a Driver -> Worker message.
func (k Kind) IsRequest() bool {
	switch k {
	case KindApply, KindCheckpoint, KindShutdown, KindInspect:
		return true
	}
	return false
}
