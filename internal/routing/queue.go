package routing

import (
	"context"
	"sync"

	"github.com/danmuck/gardenctl/internal/model"
)

// DefaultQueueSize bounds the forward queue when no size is configured.
const DefaultQueueSize = 256

// ForwardQueue decouples forwarding from the routing call path. It has a
// single consumer so operations reach each target in submission order.
type ForwardQueue struct {
	ch        chan *model.Operation
	closeOnce sync.Once
	closed    chan struct{}
}

func NewForwardQueue(size int) *ForwardQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &ForwardQueue{
		ch:     make(chan *model.Operation, size),
		closed: make(chan struct{}),
	}
}

// Enqueue blocks until op is accepted, ctx ends, or the queue is closed.
func (q *ForwardQueue) Enqueue(ctx context.Context, op *model.Operation) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- op:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain hands queued operations to fn one at a time until ctx ends or the
// queue is closed and empty.
func (q *ForwardQueue) Drain(ctx context.Context, fn func(context.Context, *model.Operation)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-q.ch:
			fn(ctx, op)
		case <-q.closed:
			for {
				select {
				case op := <-q.ch:
					fn(ctx, op)
				default:
					return nil
				}
			}
		}
	}
}

// Close stops accepting operations. Pending operations are still drained.
func (q *ForwardQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *ForwardQueue) Len() int {
	return len(q.ch)
}
