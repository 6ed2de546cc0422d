package lua_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/aretw0/rewind/pkg/adapters/lua"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, env *domain.Environment, payload string) (string, error) {
	t.Helper()
	return lua.New().Apply(context.Background(), env, payload)
}

func TestApply_Assignments(t *testing.T) {
	env := domain.NewEnvironment()

	_, err := apply(t, env, "x = 1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, env.Bindings["x"])

	_, err = apply(t, env, "x = x + 1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, env.Bindings["x"])

	_, err = apply(t, env, "x = nil")
	require.NoError(t, err)
	_, ok := env.Get("x")
	assert.False(t, ok)
}

func TestApply_ExecutionFailure(t *testing.T) {
	env := domain.NewEnvironment()
	env.Set("a", 1.0)

	_, err := apply(t, env, "a = 5; y = z + 1")
	require.Error(t, err)

	var execErr *domain.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Message, "arithmetic")

	// Effects before the failing statement persist.
	assert.Equal(t, 5.0, env.Bindings["a"])
	_, ok := env.Get("y")
	assert.False(t, ok)
}

func TestApply_SyntaxError(t *testing.T) {
	env := domain.NewEnvironment()
	env.Set("keep", "me")

	_, err := apply(t, env, "x = = 1")
	var execErr *domain.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "me", env.Bindings["keep"])
}

func TestApply_PrintAndEcho(t *testing.T) {
	env := domain.NewEnvironment()

	out, err := apply(t, env, `print("hello", 42)`)
	require.NoError(t, err)
	assert.Equal(t, "hello\t42\n", out)

	_, err = apply(t, env, "n = 20")
	require.NoError(t, err)

	out, err = apply(t, env, "n + 1")
	require.NoError(t, err)
	assert.Equal(t, "21\n", out)
}

func TestApply_Tables(t *testing.T) {
	env := domain.NewEnvironment()

	_, err := apply(t, env, `list = {1, 2, 3}; rec = {name = "ada", tags = {"x"}}`)
	require.NoError(t, err)

	assert.Equal(t, []any{1.0, 2.0, 3.0}, env.Bindings["list"])
	assert.Equal(t, map[string]any{"name": "ada", "tags": []any{"x"}}, env.Bindings["rec"])

	// Round trip through a snapshot encoding and back into Lua.
	clone, err := env.Clone()
	require.NoError(t, err)

	out, err := apply(t, clone, "#list + #rec.tags")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
}

func TestApply_FunctionsDoNotPersist(t *testing.T) {
	env := domain.NewEnvironment()

	out, err := apply(t, env, "function sq(v) return v * v end; r = sq(3)")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 9.0, env.Bindings["r"])
	_, ok := env.Get("sq")
	assert.False(t, ok)
}

func TestApply_ReservedNamesNotHarvested(t *testing.T) {
	env := domain.NewEnvironment()
	_, err := apply(t, env, "x = string.upper('a')")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"x": "A"}, env.Bindings)
}

func TestApply_OsExitDisabled(t *testing.T) {
	env := domain.NewEnvironment()
	_, err := apply(t, env, "os.exit(3)")
	assert.Error(t, err)
}

func TestApply_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lua.New().Apply(ctx, domain.NewEnvironment(), "while true do end")
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	assert.Equal(t, lua.Name, lua.New().Name())
}

func TestApply_NonFiniteNumbersSurviveSnapshot(t *testing.T) {
	env := domain.NewEnvironment()

	_, err := apply(t, env, "pos = 1/0; neg = -1/0; nan = 0/0; t = {1/0}")
	require.NoError(t, err)
	assert.True(t, math.IsInf(env.Bindings["pos"].(float64), 1))

	clone, err := env.Clone()
	require.NoError(t, err)

	_, err = apply(t, clone, "ok = pos == math.huge and neg == -math.huge and nan ~= nan and t[1] == math.huge")
	require.NoError(t, err)
	assert.Equal(t, true, clone.Bindings["ok"])
}

func TestApply_TableKeysKeepTheirType(t *testing.T) {
	env := domain.NewEnvironment()

	_, err := apply(t, env, `s = {["1"] = "str"}; n = {[5] = "num", k = 1}; b = {["[x"] = "bracket"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "str"}, env.Bindings["s"])
	assert.Equal(t, map[string]any{"[5]": "num", "k": 1.0}, env.Bindings["n"])

	clone, err := env.Clone()
	require.NoError(t, err)

	_, err = apply(t, clone, `r = {s["1"] == "str", s[1] == nil, n[5] == "num", n["5"] == nil, b["[x"] == "bracket"}`)
	require.NoError(t, err)
	assert.Equal(t, []any{true, true, true, true, true}, clone.Bindings["r"])
	clone.Delete("r")
	assert.True(t, env.Equal(clone))
}
