package rewind_test

import (
	"strings"
	"testing"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/pkg/adapters/lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(rewind.Version))
}

func TestEngines(t *testing.T) {
	reg := rewind.Engines()
	assert.Equal(t, []string{lua.Name}, reg.Names())

	engine, err := reg.New(lua.Name)
	require.NoError(t, err)
	assert.Equal(t, lua.Name, engine.Name())
}
