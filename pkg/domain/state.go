package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
)

// WorkerState is the lifecycle state of a Worker process.
type WorkerState string

const (
	StateRunning    WorkerState = "running"    // Dispatching requests from the channel
	StateSuspended  WorkerState = "suspended"  // Parked snapshot waiting for the resume signal
	StateTerminated WorkerState = "terminated" // Exited or killed
)

// Environment is the mutable state a unit of work is applied against.
// Bindings hold JSON data only (nil, bool, float64, string, []any, map[string]any)
// so the environment can be handed to a snapshot process verbatim. Numbers
// may be non-finite; they travel in the tagged form produced by Portable.
type Environment struct {
	Bindings map[string]any `json:"bindings"`
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{Bindings: make(map[string]any)}
}

// Get returns the value bound to name.
func (e *Environment) Get(name string) (any, bool) {
	v, ok := e.Bindings[name]
	return v, ok
}

// Set binds name to value.
func (e *Environment) Set(name string, value any) {
	if e.Bindings == nil {
		e.Bindings = make(map[string]any)
	}
	e.Bindings[name] = value
}

// Delete removes a binding.
func (e *Environment) Delete(name string) {
	delete(e.Bindings, name)
}

// Len returns the number of bindings.
func (e *Environment) Len() int {
	return len(e.Bindings)
}

// Clone returns a deep copy of the environment by round-tripping through its
// wire encoding, which is also what a snapshot receives.
func (e *Environment) Clone() (*Environment, error) {
	data, err := e.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeEnvironment(data)
}

// Snapshot returns a shallow copy of the bindings map.
func (e *Environment) Snapshot() map[string]any {
	return maps.Clone(e.Bindings)
}

// Equal reports whether two environments hold the same bindings.
func (e *Environment) Equal(other *Environment) bool {
	if len(e.Bindings) == 0 && len(other.Bindings) == 0 {
		return true
	}
	return reflect.DeepEqual(e.Bindings, other.Bindings)
}

// Portable returns the bindings in their wire form, which JSON can carry.
func (e *Environment) Portable() map[string]any {
	return portableMap(e.Bindings)
}

// Encode serializes the environment for a snapshot.
func (e *Environment) Encode() ([]byte, error) {
	data, err := json.Marshal(Environment{Bindings: e.Portable()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode environment: %w", err)
	}
	return data, nil
}

// DecodeEnvironment restores an environment produced by Encode.
func DecodeEnvironment(data []byte) (*Environment, error) {
	env := NewEnvironment()
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	env.Bindings = FromPortable(env.Bindings)
	return env, nil
}

// Wire tags. JSON has no literal for non-finite numbers, so they travel as
// {"$num": "+inf" | "-inf" | "nan"}. A data map whose only key is a tag is
// wrapped as {"$map": {...}} so it cannot be mistaken for one.
const (
	tagNumber = "$num"
	tagMap    = "$map"
)

// Portable converts a binding value into its wire form.
func Portable(v any) any {
	switch val := v.(type) {
	case float64:
		switch {
		case math.IsNaN(val):
			return map[string]any{tagNumber: "nan"}
		case math.IsInf(val, 1):
			return map[string]any{tagNumber: "+inf"}
		case math.IsInf(val, -1):
			return map[string]any{tagNumber: "-inf"}
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Portable(item)
		}
		return out
	case map[string]any:
		out := portableMap(val)
		if isTagged(val) {
			return map[string]any{tagMap: out}
		}
		return out
	}
	return v
}

// FromPortable reverses Portable.
func FromPortable(bindings map[string]any) map[string]any {
	out := make(map[string]any, len(bindings))
	for k, v := range bindings {
		out[k] = fromPortable(v)
	}
	return out
}

func fromPortable(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromPortable(item)
		}
		return out
	case map[string]any:
		if len(val) == 1 {
			if tag, ok := val[tagNumber].(string); ok {
				switch tag {
				case "nan":
					return math.NaN()
				case "+inf":
					return math.Inf(1)
				case "-inf":
					return math.Inf(-1)
				}
			}
			if inner, ok := val[tagMap].(map[string]any); ok {
				return FromPortable(inner)
			}
		}
		return FromPortable(val)
	}
	return v
}

func portableMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Portable(v)
	}
	return out
}

func isTagged(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	_, num := m[tagNumber]
	_, wrapped := m[tagMap]
	return num || wrapped
}
