package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/ratelimiter"
)

// Dispatcher renders NotificationTasks and hands them to the mail
// transport. Delivery is best-effort: any rendering or send error is
// logged and the notification is dropped. Errors never propagate to the
// caller, so a failed notice can never cause redelivery of the event that
// produced it.
type Dispatcher struct {
	mailer  Mailer
	limiter *ratelimiter.KindLimiters
	logger  *zap.Logger

	// Hooks for metrics, injected by main (nil = no-op).
	onSent    func(kind domain.TaskKind)
	onDropped func(kind domain.TaskKind)
}

func NewDispatcher(
	m Mailer,
	limiter *ratelimiter.KindLimiters,
	logger *zap.Logger,
	onSent func(domain.TaskKind),
	onDropped func(domain.TaskKind),
) *Dispatcher {
	if onSent == nil {
		onSent = func(domain.TaskKind) {}
	}
	if onDropped == nil {
		onDropped = func(domain.TaskKind) {}
	}
	return &Dispatcher{
		mailer: m, limiter: limiter, logger: logger,
		onSent: onSent, onDropped: onDropped,
	}
}

// Dispatch renders and sends one task. Delivery is best effort: every
// failure mode is logged and counted here, and none propagates to the
// caller.
func (d *Dispatcher) Dispatch(ctx context.Context, task domain.NotificationTask) {
	log := d.logger.With(
		zap.String("kind", string(task.Kind)),
		zap.String("resource_key", task.Context["resource_key"]),
	)

	msg, err := Render(task)
	if err != nil {
		log.Error("render failed, notification dropped", zap.Error(err))
		d.onDropped(task.Kind)
		return
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, task.Kind); err != nil {
			// ctx cancelled while waiting, shutting down.
			d.onDropped(task.Kind)
			return
		}
	}

	if err := d.mailer.Send(ctx, task.Recipient, msg.Subject, msg.HTMLBody); err != nil {
		log.Warn("mail send failed, notification dropped", zap.Error(err))
		d.onDropped(task.Kind)
		return
	}

	d.onSent(task.Kind)
	log.Info("notification sent", zap.String("subject", msg.Subject))
}
