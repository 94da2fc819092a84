package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrOutboxClosed is returned by Next once the outbox is closed and empty.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox is the unbounded per-connection queue drained by the writer.
// Replies and bridged broadcasts are pushed without blocking the reader or
// the bridge.
type Outbox struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	notify chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Push appends frame.  It returns false after Close.
func (o *Outbox) Push(frame []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.items = append(o.items, frame)
	o.mu.Unlock()
	o.signal()
	return true
}

// Next removes the oldest frame, waiting until one is available, the
// outbox is closed, or ctx is done.
func (o *Outbox) Next(ctx context.Context) ([]byte, error) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			frame := o.items[0]
			o.items[0] = nil
			o.items = o.items[1:]
			o.mu.Unlock()
			return frame, nil
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return nil, ErrOutboxClosed
		}

		select {
		case <-o.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Close stops accepting frames.  Frames already queued can still be read.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

func (o *Outbox) signal() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}
