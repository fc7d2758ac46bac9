// Package workerpool runs blocking upstream calls on a fixed set of goroutines,
// away from the goroutines serving requests and driving the refresh loop.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("worker pool stopped")

type Pool struct {
	tasks   chan func()
	logger  *zap.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// New starts numWorkers goroutines draining a queue of queueSize tasks.
func New(numWorkers, queueSize int, logger *zap.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		tasks:  make(chan func(), queueSize),
		logger: logger,
	}

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Debug("Worker pool started", zap.Int("workers", numWorkers), zap.Int("queue", queueSize))
	return p
}

// Submit enqueues task, blocking while the queue is full.
// It fails if ctx is done first or the pool has been stopped.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new tasks, lets queued tasks finish and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug("Worker pool drained")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(id, task)
	}
}

// run isolates a panicking task so the worker survives it.
func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked", zap.Int("worker_id", id), zap.Any("panic", r))
		}
	}()
	task()
}
