// Package registry maps execution engine names to their factories.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// Factory creates a fresh engine instance for one Worker process.
type Factory func() ports.Engine

// Registry manages the available execution engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Factory),
	}
}

// Register adds an engine factory to the registry.
// If an engine with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = fn
}

// New instantiates the engine registered under name.
func (r *Registry) New(name string) (ports.Engine, error) {
	r.mu.RLock()
	fn, ok := r.engines[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEngine, name)
	}
	return fn(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[name]
	return ok
}

// Names returns the registered engine names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
