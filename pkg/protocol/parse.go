package protocol

import (
	"encoding/json"
	"fmt"
)

// envelope is the framing of every message on the wire.
type envelope struct {
	Type Kind            `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Encode wraps a message in its envelope.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s body: %w", msg.Kind(), err)
	}
	return json.Marshal(envelope{Type: msg.Kind(), Body: body})
}

// Decode parses one envelope into its typed message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse message envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case KindApply:
		msg = &ApplyUnit{}
	case KindCheckpoint:
		msg = &Checkpoint{}
	case KindShutdown:
		msg = &Shutdown{}
	case KindInspect:
		msg = &Inspect{}
	case KindReady:
		msg = &Ready{}
	case KindAcknowledged:
		msg = &Acknowledged{}
	case KindCheckpointCreated:
		msg = &CheckpointCreated{}
	case KindCheckpointFailed:
		msg = &CheckpointFailed{}
	case KindCheckpointRestored:
		msg = &CheckpointRestored{}
	case KindShutdownAcknowledged:
		msg = &ShutdownAcknowledged{}
	case KindEnvironment:
		msg = &Environment{}
	default:
		return nil, fmt.Errorf("unknown message type: %q", env.Type)
	}

	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, msg); err != nil {
			return nil, fmt.Errorf("failed to parse %s message: %w", env.Type, err)
		}
	}
	return deref(msg), nil
}

// deref hands messages back by value so callers can type-switch on the
// same types they send.
func deref(msg Message) Message {
	switch m := msg.(type) {
	case *ApplyUnit:
		return *m
	case *Checkpoint:
		return *m
	case *Shutdown:
		return *m
	case *Inspect:
		return *m
	case *Ready:
		return *m
	case *Acknowledged:
		return *m
	case *CheckpointCreated:
		return *m
	case *CheckpointFailed:
		return *m
	case *CheckpointRestored:
		return *m
	case *ShutdownAcknowledged:
		return *m
	case *Environment:
		return *m
	}
	return msg
}
