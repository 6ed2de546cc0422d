package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/rewind/pkg/channel"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/protocol"
)

const (
	livenessInterval = 100 * time.Millisecond
	livenessGrace    = 100 * time.Millisecond
)

type inbound struct {
	msg protocol.Message
	err error
}

// pump moves responses from the channel into the inbox so waits can also
// watch the context, the timeout and the Worker's liveness.
func (d *Driver) pump() {
	for {
		msg, err := d.endpoint.Receive()
		select {
		case d.inbox <- inbound{msg: msg, err: err}:
		case <-d.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// call sends req and, when it expects a response, waits for it.
func (d *Driver) call(ctx context.Context, req protocol.Request) (protocol.Message, error) {
	if err := d.endpoint.Send(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWorkerLost, err)
	}
	if !req.ExpectsResponse() {
		return nil, nil
	}
	return d.await(ctx)
}

// await blocks until the current Worker answers. It fails when ctx is done,
// when the response timeout elapses, or when the Worker exited without a reply.
func (d *Driver) await(ctx context.Context) (protocol.Message, error) {
	var deadline <-chan time.Time
	if d.timeout > 0 {
		timer := time.NewTimer(d.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	probe := time.NewTicker(livenessInterval)
	defer probe.Stop()

	var grace <-chan time.Time
	for {
		select {
		case in := <-d.inbox:
			if in.err != nil {
				if errors.Is(in.err, channel.ErrClosed) {
					return nil, fmt.Errorf("%w: channel closed", domain.ErrWorkerLost)
				}
				return nil, in.err
			}
			return in.msg, nil

		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline:
			return nil, fmt.Errorf("%w after %s", domain.ErrTimeout, d.timeout)

		case <-probe.C:
			if grace == nil && exited(d.current) {
				// Replies written right before exiting may still be in flight.
				grace = time.After(livenessGrace)
			}

		case <-grace:
			return nil, fmt.Errorf("%w: worker %d exited", domain.ErrWorkerLost, d.current)
		}
	}
}
