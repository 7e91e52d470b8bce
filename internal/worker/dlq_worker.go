package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/mailer"
	"github.com/imagehub/storage-pipeline/internal/queue"
)

// DeadLetterWorker drains the dead-letter queue and raises one rejection
// notice per exhausted message. Dead-letter exhaustion is the designed
// "give up" path, not an unhandled error: every message that lands here
// terminates in a user-visible rejection and is then settled for good.
type DeadLetterWorker struct {
	dlq        *queue.Queue
	dispatcher *mailer.Dispatcher
	recipient  string
	batchSize  int
	batchWait  time.Duration
	logger     *zap.Logger

	// onRejected counts raised rejection notices (nil = no-op).
	onRejected func()
}

func NewDeadLetterWorker(
	dlq *queue.Queue,
	dispatcher *mailer.Dispatcher,
	recipient string,
	batchSize int,
	batchWait time.Duration,
	logger *zap.Logger,
	onRejected func(),
) *DeadLetterWorker {
	if onRejected == nil {
		onRejected = func() {}
	}
	return &DeadLetterWorker{
		dlq: dlq, dispatcher: dispatcher, recipient: recipient,
		batchSize: batchSize, batchWait: batchWait, logger: logger,
		onRejected: onRejected,
	}
}

// Run blocks until ctx is cancelled.
func (dw *DeadLetterWorker) Run(ctx context.Context) {
	dw.logger.Info("dead-letter worker started")
	for {
		if ctx.Err() != nil {
			dw.logger.Info("dead-letter worker stopping")
			return
		}
		for _, msg := range dw.dlq.DequeueBatch(ctx, dw.batchSize, dw.batchWait) {
			dw.reject(ctx, msg)
		}
	}
}

func (dw *DeadLetterWorker) reject(ctx context.Context, msg queue.Message) {
	ev := msg.Event
	dw.logger.Info("raising rejection for dead-lettered event",
		zap.String("message_id", msg.ID),
		zap.String("resource_key", ev.ResourceKey),
	)

	dw.dispatcher.Dispatch(ctx, domain.NotificationTask{
		Kind:      domain.TaskRejection,
		Recipient: dw.recipient,
		Context: map[string]string{
			"source_container": ev.SourceContainer,
			"resource_key":     ev.ResourceKey,
			"event_name":       ev.EventName,
		},
	})
	dw.onRejected()

	// The rejection path is terminal: settle the message even though the
	// notice itself is best-effort.
	if err := dw.dlq.Acknowledge(msg.Receipt); err != nil {
		dw.logger.Warn("failed to settle dead letter", zap.Error(err))
	}
}
