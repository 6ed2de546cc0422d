package driver

import (
	"os"
	"testing"

	"github.com/aretw0/rewind/pkg/adapters/lua"
	"github.com/aretw0/rewind/pkg/kernel"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
)

// TestMain lets the test binary double as the Worker executable.
func TestMain(m *testing.M) {
	if kernel.IsChild() {
		reg := registry.NewRegistry()
		reg.Register(lua.Name, func() ports.Engine { return lua.New() })
		os.Exit(kernel.Main(reg))
	}
	os.Exit(m.Run())
}
