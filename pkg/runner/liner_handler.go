package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// ErrLineAborted is returned by Input when the user pressed Ctrl-C at the prompt.
var ErrLineAborted = errors.New("line aborted")

// LinerHandler is the interactive terminal front end: line editing, history
// and Ctrl-C handling at the prompt.
type LinerHandler struct {
	state       *liner.State
	Writer      io.Writer
	Renderer    ContentRenderer
	historyPath string
}

// LinerHandlerOption defines configuration for LinerHandler.
type LinerHandlerOption func(*LinerHandler)

// WithLinerHistory persists the line history in path.
func WithLinerHistory(path string) LinerHandlerOption {
	return func(h *LinerHandler) {
		h.historyPath = path
	}
}

// WithLinerRenderer configures the content renderer.
func WithLinerRenderer(renderer ContentRenderer) LinerHandlerOption {
	return func(h *LinerHandler) {
		h.Renderer = renderer
	}
}

// NewLinerHandler puts the terminal under liner's control. Close must be
// called to restore it.
func NewLinerHandler(w io.Writer, opts ...LinerHandlerOption) *LinerHandler {
	if w == nil {
		w = os.Stdout
	}
	h := &LinerHandler{
		state:  liner.NewLiner(),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.state.SetCtrlCAborts(true)
	h.state.SetMultiLineMode(true)

	if h.historyPath != "" {
		if f, err := os.Open(h.historyPath); err == nil {
			_, _ = h.state.ReadHistory(f)
			_ = f.Close()
		}
	}
	return h
}

func (h *LinerHandler) Input(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	line, err := h.state.Prompt(prompt)
	switch {
	case errors.Is(err, liner.ErrPromptAborted):
		return "", ErrLineAborted
	case err != nil:
		return "", err
	}
	return SanitizeInput(line)
}

func (h *LinerHandler) Output(ctx context.Context, reply Reply) error {
	return writeReply(h.Writer, reply, h.Renderer)
}

func (h *LinerHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := io.WriteString(h.Writer, msg+"\n")
	return err
}

// Record adds a submitted unit to the line history.
func (h *LinerHandler) Record(unit string) {
	h.state.AppendHistory(strings.ReplaceAll(unit, "\n", " "))
}

// Close saves the history and restores the terminal.
func (h *LinerHandler) Close() error {
	if h.historyPath != "" {
		if f, err := os.Create(h.historyPath); err == nil {
			_, _ = h.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return h.state.Close()
}
