// Package ndjson provides utilities for reading and writing newline-delimited JSON.
package ndjson

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// maxLineSize bounds a single message; environments travel on a separate pipe.
const maxLineSize = 4 * 1024 * 1024

// Reader reads newline-delimited JSON from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a new NDJSON reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// ReadLine reads the next JSON line as raw bytes.
// Returns io.EOF when there are no more lines.
func (r *Reader) ReadLine() ([]byte, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer.
		result := make([]byte, len(line))
		copy(result, line)
		return result, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Writer writes newline-delimited JSON to an io.Writer.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a new NDJSON writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes a value as a JSON line.
func (w *Writer) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteRaw(data)
}

// WriteRaw writes raw bytes followed by a newline in a single write call, so
// a line is never interleaved with another process writing to the same pipe.
func (w *Writer) WriteRaw(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')
	_, err := w.w.Write(line)
	return err
}
