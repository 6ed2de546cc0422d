package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/rewind/internal/testutils"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/runner"
	"github.com/aretw0/rewind/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	factory, _ := testutils.FakeFactory()
	mgr := session.NewManager(factory)
	_, err := mgr.Create(context.Background(), "default")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.CloseAll(context.Background()) })
	return NewServer(mgr, "default", opts...)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_SubmitInspectUndo(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSubmit(ctx, mcp.CallToolRequest{}, map[string]any{"payload": "x = 1"})
	require.NoError(t, err)
	assert.Equal(t, "default", res.SessionID)
	assert.Equal(t, 1, res.Depth)

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, map[string]any{"payload": "x = 2"})
	require.NoError(t, err)

	out, err := s.handleInspect(ctx, call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x": 2}`, text(t, out))

	out, err = s.handleUndo(ctx, call(nil))
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, "undone (depth 1)", text(t, out))

	out, err = s.handleInspect(ctx, call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x": 1}`, text(t, out))

	out, err = s.handleHistory(ctx, call(nil))
	require.NoError(t, err)
	var entries []domain.Entry
	require.NoError(t, json.Unmarshal([]byte(text(t, out)), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "x = 1", entries[0].Payload)
}

func TestServer_UndoEmpty(t *testing.T) {
	s := newTestServer(t)

	out, err := s.handleUndo(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Equal(t, "nothing to undo", text(t, out))
}

func TestServer_UnknownSession(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSubmit(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"payload":    "x = 1",
		"session_id": "nope",
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	out, err := s.handleInspect(context.Background(), call(map[string]any{"session_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestServer_SubmitRejected(t *testing.T) {
	deny, err := runner.DenyPatternsMiddleware(`os\.execute`)
	require.NoError(t, err)
	s := newTestServer(t, WithInterceptor(deny))
	ctx := context.Background()

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, map[string]any{"payload": `os.execute("ls")`})
	assert.ErrorContains(t, err, "unit denied")

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, map[string]any{"payload": " "})
	assert.ErrorContains(t, err, "empty payload")

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, map[string]any{"payload": "\xff"})
	assert.ErrorIs(t, err, runner.ErrInvalidUTF8)
}
