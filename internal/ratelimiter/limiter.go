package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// KindLimiters holds one token bucket limiter per notification kind.
// Each limiter enforces a steady-state rate toward the mail transport.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type KindLimiters struct {
	limiters map[domain.TaskKind]*rate.Limiter
}

// New creates a KindLimiters with ratePerSec tokens per second per kind.
func New(ratePerSec int) *KindLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec // burst == rate: prevents any "saved up" burst above the limit

	return &KindLimiters{
		limiters: map[domain.TaskKind]*rate.Limiter{
			domain.TaskConfirmation: rate.NewLimiter(r, burst),
			domain.TaskRejection:    rate.NewLimiter(r, burst),
			domain.TaskDeletion:     rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the kind's limiter grants a token.
// Called by the dispatcher immediately before handing mail to the
// transport. Returns a non-nil error only if ctx is cancelled while
// waiting.
func (kl *KindLimiters) Wait(ctx context.Context, kind domain.TaskKind) error {
	l, ok := kl.limiters[kind]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
