package protocol_test

import (
	"testing"

	"github.com/aretw0/rewind/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectsResponse(t *testing.T) {
	tests := []struct {
		name string
		req  protocol.Request
		want bool
	}{
		{"checkpoint", protocol.Checkpoint{}, true},
		{"shutdown", protocol.Shutdown{}, true},
		{"inspect", protocol.Inspect{}, true},
		{"apply awaited", protocol.ApplyUnit{Payload: "x = 1", Await: true}, true},
		{"apply fire and forget", protocol.ApplyUnit{Payload: "x = 1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.ExpectsResponse())
			assert.True(t, tt.req.Kind().IsRequest())
		})
	}
}

func TestDecode_TypedMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"apply", protocol.ApplyUnit{Payload: "print('hi')", Await: true}},
		{"checkpoint", protocol.Checkpoint{}},
		{"created", protocol.CheckpointCreated{PID: 4242}},
		{"failed", protocol.CheckpointFailed{Reason: "fork: resource temporarily unavailable"}},
		{"restored", protocol.CheckpointRestored{PID: 17}},
		{"ack", protocol.Acknowledged{Output: "2", Failure: ""}},
		{"shutdown ack", protocol.ShutdownAcknowledged{}},
		{"ready", protocol.Ready{PID: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := protocol.Encode(tt.msg)
			require.NoError(t, err)

			got, err := protocol.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestDecode_EnvironmentBindings(t *testing.T) {
	data, err := protocol.Encode(protocol.Environment{Bindings: map[string]any{"x": 2.0, "name": "ada"}})
	require.NoError(t, err)

	got, err := protocol.Decode(data)
	require.NoError(t, err)

	env, ok := got.(protocol.Environment)
	require.True(t, ok, "expected protocol.Environment, got %T", got)
	assert.Equal(t, 2.0, env.Bindings["x"])
	assert.Equal(t, "ada", env.Bindings["name"])
}

func TestDecode_WireShape(t *testing.T) {
	got, err := protocol.Decode([]byte(`{"type":"checkpoint_created","body":{"pid":4242}}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.CheckpointCreated{PID: 4242}, got)

	got, err = protocol.Decode([]byte(`{"type":"shutdown"}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.Shutdown{}, got)
}

func TestDecode_Errors(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"type":"teleport"}`))
	assert.ErrorContains(t, err, "unknown message type")

	_, err = protocol.Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = protocol.Decode([]byte(`{"type":"checkpoint_created","body":{"pid":"abc"}}`))
	assert.Error(t, err)
}

func TestKind_IsRequest(t *testing.T) {
	assert.False(t, protocol.KindCheckpointCreated.IsRequest())
	assert.False(t, protocol.KindReady.IsRequest())
	assert.True(t, protocol.KindApply.IsRequest())
}
