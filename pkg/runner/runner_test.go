package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/rewind/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// braceChecker treats unbalanced braces as incomplete input.
type braceChecker struct{}

func (braceChecker) Incomplete(src string) bool {
	return strings.Count(src, "{") > strings.Count(src, "}")
}

func run(t *testing.T, input string, opts ...Option) (string, *testutils.FakeSession) {
	t.Helper()
	var out bytes.Buffer
	s := testutils.NewFakeSession("test")

	opts = append([]Option{
		WithInputHandler(NewTextHandler(strings.NewReader(input), &out, WithTextHandlerQuiet(true))),
	}, opts...)
	r := NewRunner(opts...)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), s) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Runner timed out")
	}
	return out.String(), s
}

func TestRunner_SubmitAndUndo(t *testing.T) {
	out, s := run(t, "x = 1\nx = 2\n:env\n!!\n:env\n:undo\n:undo\n")

	assert.Equal(t, "x = 2\nundone (depth 1)\nx = 1\nundone (depth 0)\nerror: nothing to undo\n", out)
	assert.Zero(t, s.Depth())
}

func TestRunner_OutputAndFailure(t *testing.T) {
	out, s := run(t, "print hello\nfail\n:history\n")

	assert.Equal(t, "hello\nerror: boom\n  1  print hello\n  2  fail  [failed]\n", out)
	assert.Equal(t, 2, s.Depth())
}

func TestRunner_QuitStopsReading(t *testing.T) {
	_, s := run(t, "x = 1\n:quit\ny = 2\n")
	assert.Equal(t, 1, s.Depth())
}

func TestRunner_UnknownCommand(t *testing.T) {
	out, _ := run(t, ":rewind\n\n")
	assert.Equal(t, "error: unknown command :rewind, type :help\n", out)
}

func TestRunner_Help(t *testing.T) {
	var rendered string
	h := NewTextHandler(strings.NewReader(":help\n"), &bytes.Buffer{}, WithTextHandlerQuiet(true),
		WithTextHandlerRenderer(func(md string) (string, error) {
			rendered = md
			return "HELP", nil
		}))

	err := NewRunner(WithInputHandler(h)).Run(context.Background(), testutils.NewFakeSession("h"))
	require.NoError(t, err)
	assert.Equal(t, HelpText, rendered)
	assert.Equal(t, "HELP\n", h.Writer.(*bytes.Buffer).String())
}

func TestRunner_MultiLineUnits(t *testing.T) {
	_, s := run(t, "t = {\n1,\n2 }\nu = {\n\n", WithIncompleteChecker(braceChecker{}))

	entries, err := s.Transcript(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t = {\n1,\n2 }", entries[0].Payload)
	// An empty continuation line submits the unit as is.
	assert.Equal(t, "u = {", entries[1].Payload)
}

func TestRunner_Interceptor(t *testing.T) {
	deny, err := DenyPatternsMiddleware(`os\.execute`)
	require.NoError(t, err)

	out, s := run(t, "os.execute('ls')\nx = 1\n", WithInterceptor(deny))
	assert.Contains(t, out, `error: denied: unit matches denied pattern "os\\.execute"`)
	assert.Equal(t, 1, s.Depth())
}

func TestRunner_Banner(t *testing.T) {
	var out bytes.Buffer
	h := NewTextHandler(strings.NewReader(""), &out)

	err := NewRunner(WithInputHandler(h), WithBanner("rewind 1.0")).Run(context.Background(), testutils.NewFakeSession("b"))
	require.NoError(t, err)
	assert.Equal(t, "rewind 1.0\n> ", out.String())
}

func TestRunner_ClosedSessionEndsLoop(t *testing.T) {
	s := testutils.NewFakeSession("closed")
	require.NoError(t, s.Shutdown(context.Background()))

	h := NewTextHandler(strings.NewReader("x = 1\n"), &bytes.Buffer{}, WithTextHandlerQuiet(true))
	err := NewRunner(WithInputHandler(h)).Run(context.Background(), s)
	assert.ErrorContains(t, err, "session closed")
}

func TestRunner_JSONHandler(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("\"x = 1\"\nprint hi\n\":env\"\n")
	h := NewJSONHandler(in, &out)

	err := NewRunner(WithInputHandler(h)).Run(context.Background(), testutils.NewFakeSession("j"))
	require.NoError(t, err)

	dec := json.NewDecoder(&out)
	var replies []Reply
	for dec.More() {
		var r Reply
		require.NoError(t, dec.Decode(&r))
		replies = append(replies, r)
	}
	require.Len(t, replies, 3)
	assert.Equal(t, Reply{Kind: ReplyResult, Depth: 1}, replies[0])
	assert.Equal(t, Reply{Kind: ReplyResult, Output: "hi\n", Depth: 2}, replies[1])
	assert.Equal(t, ReplyEnv, replies[2].Kind)
	assert.Equal(t, map[string]any{"x": 1.0}, replies[2].Bindings)
}

func TestRunner_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr := &blockingReader{}
	h := NewTextHandler(pr, &bytes.Buffer{}, WithTextHandlerQuiet(true))

	done := make(chan error, 1)
	go func() { done <- NewRunner(WithInputHandler(h)).Run(ctx, testutils.NewFakeSession("c")) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Runner did not stop on cancellation")
	}
}

// blockingReader never returns data.
type blockingReader struct{}

func (*blockingReader) Read([]byte) (int, error) {
	select {}
}
