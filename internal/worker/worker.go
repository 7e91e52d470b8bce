package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/queue"
	"github.com/imagehub/storage-pipeline/internal/repository"
)

// Worker is a single goroutine that continuously pulls message batches from
// the work queue, validates each event's media type, and persists a record
// for it. Acknowledge/abandon decisions are strictly per message: one
// failure in a batch never settles the fate of its siblings.
type Worker struct {
	id        int
	q         *queue.Queue
	repo      repository.RecordRepository
	batchSize int
	batchWait time.Duration
	logger    *zap.Logger

	// Hooks for metrics, injected by the pool so the worker stays metrics-agnostic.
	onProcessed func(latency time.Duration)
	onFailed    func(reason string)
}

// NewWorker constructs a worker. onProcessed and onFailed are optional (nil = no-op).
func NewWorker(
	id int,
	q *queue.Queue,
	repo repository.RecordRepository,
	batchSize int,
	batchWait time.Duration,
	logger *zap.Logger,
	onProcessed func(time.Duration),
	onFailed func(string),
) *Worker {
	if onProcessed == nil {
		onProcessed = func(time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(string) {}
	}
	return &Worker{
		id: id, q: q, repo: repo,
		batchSize: batchSize, batchWait: batchWait, logger: logger,
		onProcessed: onProcessed, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled, fetching one batch per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		for _, msg := range w.q.DequeueBatch(ctx, w.batchSize, w.batchWait) {
			w.process(ctx, msg)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg queue.Message) {
	start := time.Now()
	ev := msg.Event
	log := w.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("resource_key", ev.ResourceKey),
		zap.Int("attempt", msg.Attempt),
	)

	// Only creations are routed here; anything else is a misrouted message
	// with no record to write. Settle it so it does not churn through the
	// retry budget.
	if ev.Kind != domain.KindCreated {
		log.Debug("skipping non-creation event", zap.String("kind", string(ev.Kind)))
		w.ack(msg, log)
		return
	}

	ext := ev.Extension()
	if !domain.AllowedExtensions[ext] {
		err := &domain.UnsupportedMediaError{ResourceKey: ev.ResourceKey, Extension: ext}
		log.Warn("rejecting event", zap.Error(err))
		w.abandon(msg, log)
		w.onFailed("unsupported_media")
		return
	}

	rec := &domain.Record{
		ResourceKey: ev.ResourceKey,
		Extension:   ext,
	}
	if err := w.repo.Upsert(ctx, rec); err != nil {
		log.Error("failed to persist record", zap.Error(err))
		w.abandon(msg, log)
		w.onFailed("persist")
		return
	}

	w.ack(msg, log)
	w.onProcessed(time.Since(start))
	log.Info("record persisted", zap.String("extension", ext))
}

func (w *Worker) ack(msg queue.Message, log *zap.Logger) {
	if err := w.q.Acknowledge(msg.Receipt); err != nil {
		// The visibility timeout lapsed mid-processing; the message will be
		// redelivered and the idempotent upsert converges it.
		log.Warn("acknowledge failed", zap.Error(err))
	}
}

func (w *Worker) abandon(msg queue.Message, log *zap.Logger) {
	if err := w.q.Abandon(msg.Receipt); err != nil {
		log.Warn("abandon failed", zap.Error(err))
	}
}
