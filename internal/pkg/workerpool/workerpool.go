package workerpool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background work. It should return when ctx is cancelled.
type Job func(ctx context.Context)

// WorkerPool runs jobs on a fixed number of goroutines fed by a bounded queue.
type WorkerPool struct {
	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    *zap.Logger
}

func NewWorkerPool(ctx context.Context, workerCount, queueSize int, log *zap.Logger) *WorkerPool {
	if log == nil {
		log = zap.NewNop()
	}
	if workerCount < 1 {
		workerCount = 1
	}
	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
		log:   log.Named("workerpool"),
	}
	for n := 0; n < workerCount; n++ {
		pool.wg.Add(1)
		go pool.worker(ctx)
	}
	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("worker stopped", zap.Error(ctx.Err()))
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			job(ctx)
		}
	}
}

// Submit enqueues job without blocking. It reports false when the queue is full
// or the pool is shut down, and the job was dropped.
func (p *WorkerPool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("worker pool shut down, job dropped")
		return false
	}
	select {
	case p.queue <- job:
		return true
	default:
		p.log.Warn("worker pool queue full, job dropped")
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones until ctx expires.
func (p *WorkerPool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.log.Warn("worker pool shutdown timed out")
	case <-done:
		p.log.Info("worker pool shutdown complete")
	}
}

// WithRetry wraps job so it runs up to attempts times, sleeping delay between
// failures.
func WithRetry(log *zap.Logger, attempts int, delay time.Duration, job func(ctx context.Context) error) Job {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context) {
		for i := 0; i < attempts; i++ {
			if ctx.Err() != nil {
				log.Debug("job cancelled before execution")
				return
			}
			err := job(ctx)
			if err == nil {
				return
			}
			log.Warn("job failed", zap.Int("attempt", i+1), zap.Int("attempts", attempts), zap.Error(err))
			if i+1 < attempts {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
		}
		log.Error("job failed after max retries", zap.Int("attempts", attempts))
	}
}
