package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/feed"
	"github.com/imagehub/storage-pipeline/internal/mailer"
)

// ChangeNotifier consumes the records change feed and raises a deletion
// notice for every REMOVE it observes, carrying the pre-deletion
// attributes. The feed is at-least-once and the notifier does not
// deduplicate: a redelivered removal produces another notice, which the
// best-effort mail contract tolerates.
type ChangeNotifier struct {
	feed       *feed.Feed
	dispatcher *mailer.Dispatcher
	recipient  string
	logger     *zap.Logger
}

func NewChangeNotifier(
	f *feed.Feed,
	dispatcher *mailer.Dispatcher,
	recipient string,
	logger *zap.Logger,
) *ChangeNotifier {
	return &ChangeNotifier{feed: f, dispatcher: dispatcher, recipient: recipient, logger: logger}
}

// Run blocks until ctx is cancelled, consuming one change per iteration.
// Per-key ordering is preserved by consuming sequentially.
func (cn *ChangeNotifier) Run(ctx context.Context) {
	cn.logger.Info("change notifier started")
	for {
		change, ok := cn.feed.Next(ctx)
		if !ok {
			cn.logger.Info("change notifier stopping")
			return
		}
		cn.observe(ctx, change)
	}
}

func (cn *ChangeNotifier) observe(ctx context.Context, change domain.RecordChange) {
	// Inserts and modifies are only bookkeeping on the feed; deletion is
	// the one change that owes the user a notice.
	if change.Op != domain.ChangeRemove {
		return
	}

	taskCtx := map[string]string{"resource_key": change.Key}
	if old := change.OldImage; old != nil {
		taskCtx["extension"] = old.Extension
		if old.Description != nil {
			taskCtx["description"] = *old.Description
		}
	}

	cn.logger.Info("record removed, raising deletion notice",
		zap.String("resource_key", change.Key))

	cn.dispatcher.Dispatch(ctx, domain.NotificationTask{
		Kind:      domain.TaskDeletion,
		Recipient: cn.recipient,
		Context:   taskCtx,
	})
}
