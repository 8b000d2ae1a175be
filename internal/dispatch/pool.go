// Package dispatch runs submission pipelines as fire-and-forget background
// tasks. The submission id is the only linkage back to state; results are
// observed by polling the record store.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes the pipeline for one submission id.
type Runner interface {
	Process(ctx context.Context, id string)
}

// Pool manages a fixed set of worker goroutines draining a task queue.
type Pool struct {
	workers int
	tasks   chan string
	runner  Runner
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewPool creates a pool; zero values fall back to small defaults.
func NewPool(workers, queueSize int, runner Runner, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan string, queueSize),
		runner:  runner,
		logger:  logger,
	}
}

// Start launches the workers. They exit when the context is cancelled or
// the queue is closed.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting pipeline worker pool", zap.Int("workers", p.workers))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case submissionID, ok := <-p.tasks:
			if !ok {
				p.logger.Debug("Task queue closed, worker exiting", zap.Int("worker", id))
				return
			}
			start := time.Now()
			p.runner.Process(ctx, submissionID)
			p.logger.Debug("Pipeline task finished",
				zap.Int("worker", id),
				zap.String("submission_id", submissionID),
				zap.Duration("duration", time.Since(start)))
		case <-ctx.Done():
			p.logger.Debug("Context cancelled, worker exiting", zap.Int("worker", id))
			return
		}
	}
}

// Submit enqueues a submission for processing. Returns false if the queue
// stays full past the timeout rather than blocking the intake path.
func (p *Pool) Submit(submissionID string) bool {
	select {
	case p.tasks <- submissionID:
		return true
	case <-time.After(5 * time.Second):
		p.logger.Error("Failed to enqueue submission: queue full", zap.String("submission_id", submissionID))
		return false
	}
}

// Shutdown closes the queue and waits for in-flight tasks to drain.
func (p *Pool) Shutdown() {
	p.logger.Info("Shutting down pipeline worker pool...")
	close(p.tasks)
	p.wg.Wait()
	p.logger.Info("Pipeline worker pool stopped")
}
