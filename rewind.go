package rewind

import (
	"context"
	_ "embed"

	"github.com/aretw0/rewind/pkg/adapters/lua"
	"github.com/aretw0/rewind/pkg/driver"
	"github.com/aretw0/rewind/pkg/kernel"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
)

// Version is the release of this module, as recorded in the VERSION file.
//
//go:embed VERSION
var Version string

// Engines returns a registry holding the built-in execution engines.
func Engines() *registry.Registry {
	reg := registry.NewRegistry()
	reg.Register(lua.Name, func() ports.Engine { return lua.New() })
	return reg
}

// IsChild reports whether this process was spawned as a Worker or snapshot.
// Programs that start sessions must check it first thing in main and hand
// control to RunChild.
func IsChild() bool {
	return kernel.IsChild()
}

// RunChild runs the Worker side of a session with the built-in engines and
// returns the process exit code.
func RunChild() int {
	return kernel.Main(Engines())
}

// Start creates a session whose Worker is this same executable.
func Start(ctx context.Context, opts ...driver.Option) (*driver.Driver, error) {
	return driver.Start(ctx, opts...)
}
