// Package queue holds commands waiting for the single pipeline runner.
//
// Commands are consumed one at a time in submission order; the queue
// never runs anything itself.
package queue

import (
	"context"
	"sync"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/metrics"
)

const defaultCapacity = 16

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a command. It fails with ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, cmd model.Command) error

	// Dequeue returns the channel commands are delivered on. It is closed
	// once the queue is closed and drained.
	Dequeue() <-chan model.Command

	// Len returns the number of pending commands.
	Len() int

	// Close stops accepting commands.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commands chan model.Command
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded command queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan model.Command, q.capacity)
	metrics.UpdateCommandQueueSize(0)
	return q
}

// Enqueue adds a command to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, cmd model.Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.commands <- cmd:
		metrics.UpdateCommandQueueSize(len(q.commands))
		return nil
	default:
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan model.Command {
	return q.commands
}

// Len returns the current number of queued commands.
func (q *InMemoryQueue) Len() int {
	n := len(q.commands)
	metrics.UpdateCommandQueueSize(n)
	return n
}

// Close gracefully shuts down the queue. Pending commands stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
