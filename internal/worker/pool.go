package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/queue"
	"github.com/imagehub/storage-pipeline/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnProcessed func(latency time.Duration)
	OnFailed    func(reason string)
}

// Pool manages the lifecycle of all processing workers. Workers are
// stateless and share nothing in-process; the records table is the only
// shared mutable resource, and every write to it is a single-key
// idempotent upsert.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates count identical workers draining the same queue.
func NewPool(
	count int,
	q *queue.Queue,
	repo repository.RecordRepository,
	batchSize int,
	batchWait time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, count)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, batchSize, batchWait,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnProcessed,
			hooks.OnFailed,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight messages finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
