package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoEngine struct{}

func (echoEngine) Name() string { return "echo" }

func (echoEngine) Apply(ctx context.Context, env *domain.Environment, payload string) (string, error) {
	return payload, nil
}

func TestRegistry(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("echo", func() ports.Engine { return echoEngine{} })

	assert.True(t, reg.Has("echo"))
	assert.Equal(t, []string{"echo"}, reg.Names())

	eng, err := reg.New("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", eng.Name())

	_, err = reg.New("cobol")
	assert.ErrorIs(t, err, domain.ErrUnknownEngine)
}
