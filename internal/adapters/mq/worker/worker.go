// Package worker runs queued pipeline commands one at a time.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
)

// Queue defines how the runner receives commands.
type Queue interface {
	Dequeue() <-chan model.Command
}

// Executor carries out one command. It returns only when the command has
// finished, successfully or not.
type Executor interface {
	Execute(ctx context.Context, cmd model.Command) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, cmd model.Command) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, cmd model.Command) error { return f(ctx, cmd) }

// Runner consumes commands sequentially. There is never more than one
// command in flight.
type Runner struct {
	queue    Queue
	executor Executor
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	mu        sync.Mutex
	processed int
	lastErr   error

	logger logger.Logger
}

// NewRunner creates a runner reading from q and executing with exec.
func NewRunner(q Queue, exec Executor, opts ...Option) *Runner {
	r := &Runner{
		queue:    q,
		executor: exec,
		name:     "runner",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.name != "runner" {
		r.logger = r.logger.Named(r.name)
	}
	return r
}

// Run executes commands until ctx is cancelled, Shutdown is called or the
// queue is closed. A command already running is finished first; it sees
// ctx cancellation and decides itself how to wind down.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	commands := r.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			r.execute(ctx, cmd)
		}
	}
}

func (r *Runner) execute(ctx context.Context, cmd model.Command) {
	start := time.Now()
	r.logger.Info(ctx, "command started",
		logger.String("command_id", cmd.ID),
		logger.String("kind", cmd.Kind.String()),
		logger.String("source", cmd.Source),
	)

	err := r.executor.Execute(ctx, cmd)

	r.mu.Lock()
	r.processed++
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		r.logger.Error(ctx, "command failed",
			logger.String("command_id", cmd.ID),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return
	}
	r.logger.Info(ctx, "command finished",
		logger.String("command_id", cmd.ID),
		logger.Duration("elapsed", time.Since(start)),
	)
}

// Processed returns how many commands have been executed and the error of
// the most recent one.
func (r *Runner) Processed() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastErr
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Shutdown stops taking new commands and waits for the one in flight.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() { close(r.shutdown) })

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
