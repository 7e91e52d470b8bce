package queue

import (
	"time"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// Message is one delivery of a queued event. Attempt counts deliveries
// (1 on the first) and Receipt is an opaque token valid only for this
// delivery: acknowledging or abandoning with a stale receipt fails with
// ErrUnknownReceipt.
type Message struct {
	ID      string
	Event   domain.Event
	Attempt int
	Receipt string
}

// Config models the queue's redelivery behaviour explicitly rather than
// inferring it from deployment-time wiring.
type Config struct {
	// MaxAttempts is the delivery bound. Once a message has been delivered
	// MaxAttempts times and is abandoned again, it moves to the dead-letter
	// queue.
	MaxAttempts int

	// VisibilityTimeout is how long a delivered message stays invisible
	// before an implicit abandon redelivers it.
	VisibilityTimeout time.Duration

	// PropagationDelay is the bounded, non-zero interval between Enqueue
	// and consumer visibility. Consumers tolerate eventual rather than
	// immediate visibility.
	PropagationDelay time.Duration
}
