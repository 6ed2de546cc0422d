package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines
// communication. Each input line is a unit (a JSON string or raw text) and
// each reply is emitted as one JSON object.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Input(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	// A JSON string carries multi-line units on one line.
	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return SanitizeInput(val)
	}
	return SanitizeInput(text)
}

func (h *JSONHandler) Output(ctx context.Context, reply Reply) error {
	return h.Encoder.Encode(reply)
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(Reply{Kind: ReplyInfo, Message: msg})
}
