// Package channel implements the duplex, ordered, message-oriented transport
// between the Driver and its Worker processes.
//
// A channel is a pair of OS pipes. The Driver keeps one endpoint; the other
// endpoint is handed to child processes as inherited file descriptors. When a
// Worker creates a snapshot it passes the very same descriptors on, so every
// snapshot refers to the same transport. Only the Running Worker ever reads
// its endpoint; that discipline is enforced by Worker state, not here.
package channel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/rewind/internal/ndjson"
	"github.com/aretw0/rewind/pkg/protocol"
)

// Inherited descriptor numbers of the worker-side endpoint in child processes.
const (
	RequestFD  = 3
	ResponseFD = 4
)

// ErrClosed is returned when the peer side of the transport is gone.
var ErrClosed = errors.New("channel closed")

// Endpoint is one side of a channel.
type Endpoint struct {
	in  *os.File
	out *os.File

	reader *ndjson.Reader
	writer *ndjson.Writer

	closeOnce sync.Once
}

// Files are the worker-side descriptors a child process inherits.
type Files struct {
	Requests  *os.File // read end of Driver -> Worker
	Responses *os.File // write end of Worker -> Driver
}

// Extra returns the files in the order expected by RequestFD and ResponseFD
// when placed first in exec.Cmd.ExtraFiles.
func (f *Files) Extra() []*os.File {
	return []*os.File{f.Requests, f.Responses}
}

// Close releases the parent's copy of the worker-side descriptors.
func (f *Files) Close() error {
	return errors.Join(f.Requests.Close(), f.Responses.Close())
}

// New creates a channel and returns the Driver endpoint plus the worker-side
// files to hand to the first Worker.
func New() (*Endpoint, *Files, error) {
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request pipe: %w", err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, nil, fmt.Errorf("failed to create response pipe: %w", err)
	}

	driver := newEndpoint(respR, reqW)
	return driver, &Files{Requests: reqR, Responses: respW}, nil
}

// Inherit opens the worker-side endpoint from descriptors inherited at
// RequestFD and ResponseFD.
func Inherit() (*Endpoint, *Files, error) {
	in := os.NewFile(RequestFD, "rewind-requests")
	out := os.NewFile(ResponseFD, "rewind-responses")
	if in == nil || out == nil {
		return nil, nil, fmt.Errorf("channel descriptors %d/%d not inherited", RequestFD, ResponseFD)
	}
	return newEndpoint(in, out), &Files{Requests: in, Responses: out}, nil
}

// Open wraps worker-side files as an endpoint. It is the in-process
// counterpart of Inherit.
func Open(files *Files) *Endpoint {
	return newEndpoint(files.Requests, files.Responses)
}

func newEndpoint(in, out *os.File) *Endpoint {
	return &Endpoint{
		in:     in,
		out:    out,
		reader: ndjson.NewReader(in),
		writer: ndjson.NewWriter(out),
	}
}

// Send writes one message. It does not wait for the peer.
func (e *Endpoint) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := e.writer.WriteRaw(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Kind(), err)
	}
	return nil
}

// Receive blocks until a message is available. It returns ErrClosed once every
// writer of the inbound pipe has gone away.
func (e *Endpoint) Receive() (protocol.Message, error) {
	line, err := e.reader.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("failed to receive: %w", err)
	}
	return protocol.Decode(line)
}

// Close closes both directions of this endpoint.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = errors.Join(e.in.Close(), e.out.Close())
	})
	return err
}
