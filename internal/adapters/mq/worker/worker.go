// Package worker runs game tasks off the queue and emits rating results.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/pkg/logger"
	"github.com/okian/pitchelo/pkg/metrics"
)

// Task and Result alias the model types flowing through the pool.
type (
	Task   = model.GameTask
	Result = model.GameResult
)

// Processor computes the rating outcome of one game. Each call reads its
// own snapshot; failures are reported in Result.Err, never panicked.
type Processor interface {
	Process(ctx context.Context, t Task) Result
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes tasks from the queue until shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue
	// closes.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a shared results channel.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	results   chan<- Result
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker publishing onto results. The caller
// owns the results channel; workers never close it.
func NewInMemoryWorker(queue Queue, processor Processor, results chan<- Result, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		processor: processor,
		results:   results,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.processTask(ctx, task)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processTask(ctx context.Context, task Task) {
	start := time.Now()
	result := w.processor.Process(ctx, task)
	metrics.RecordGameProcessingLatency(float64(time.Since(start).Milliseconds()))

	if result.Err != nil {
		w.logger.Error(ctx, "game processing failed",
			logger.Int64("gameID", int64(task.GameID)),
			logger.Error(result.Err),
		)
	}

	select {
	case w.results <- result:
	case <-ctx.Done():
	}
}
