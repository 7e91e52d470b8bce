// Package queue implements an at-least-once, batch-oriented work channel
// with receipts, a visibility timeout, bounded redelivery, and a terminal
// dead-letter hand-off. It is deliberately in-process and independent of
// any message-bus product.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// ErrUnknownReceipt is returned by Acknowledge and Abandon when the receipt
// does not identify an in-flight delivery. A receipt goes stale as soon as
// its visibility timeout expires and the message is redelivered.
var ErrUnknownReceipt = errors.New("unknown or stale receipt")

// entry is the internal state of one queued message across redeliveries.
type entry struct {
	id         string
	event      domain.Event
	deliveries int

	visibleAt time.Time // while delayed: when it becomes ready
	receipt   string    // while in flight
	expiresAt time.Time // while in flight: implicit-abandon deadline
}

// Queue buffers dispatched work. Messages are enqueued without blocking the
// producer, become visible after the propagation delay, and are fetched in
// batches. Each delivery must be acknowledged or abandoned individually;
// a message whose visibility timeout lapses is treated as abandoned.
//
// Once a message has been delivered MaxAttempts times and fails again, it
// moves atomically to the associated dead-letter queue. That transition is
// terminal: dead-lettered messages never reappear here.
type Queue struct {
	cfg Config
	dlq *Queue

	mu       sync.Mutex
	ready    []*entry
	delayed  []*entry
	inflight map[string]*entry // keyed by receipt

	// wake nudges one blocked DequeueBatch when new work arrives.
	wake chan struct{}
}

// New creates a queue without a dead-letter target: exhausted messages are
// dropped. Use NewWithDeadLetter for the retry-then-reject pipeline.
func New(cfg Config) *Queue {
	return &Queue{
		cfg:      cfg,
		inflight: make(map[string]*entry),
		wake:     make(chan struct{}, 1),
	}
}

// NewWithDeadLetter creates a queue whose exhausted messages move to dlq.
// The dead-letter queue is an ordinary Queue with its own Config; it has no
// path back to the primary.
func NewWithDeadLetter(cfg Config, dlq *Queue) *Queue {
	q := New(cfg)
	q.dlq = dlq
	return q
}

// Enqueue accepts an event without blocking. The message becomes visible to
// consumers after the configured propagation delay.
func (q *Queue) Enqueue(ev domain.Event) {
	e := &entry{
		id:        uuid.New().String(),
		event:     ev,
		visibleAt: time.Now().Add(q.cfg.PropagationDelay),
	}

	q.mu.Lock()
	if q.cfg.PropagationDelay <= 0 {
		q.ready = append(q.ready, e)
	} else {
		q.delayed = append(q.delayed, e)
	}
	q.mu.Unlock()
	q.signal()
}

// DequeueBatch returns up to maxSize messages, waiting up to maxWait for at
// least one to become visible. It returns early with whatever is available
// as soon as anything is; an empty slice means the wait elapsed or ctx was
// cancelled. Every returned message carries a fresh receipt.
func (q *Queue) DequeueBatch(ctx context.Context, maxSize int, maxWait time.Duration) []Message {
	deadline := time.Now().Add(maxWait)

	for {
		q.mu.Lock()
		now := time.Now()
		q.promoteLocked(now)
		if len(q.ready) > 0 {
			msgs := q.deliverLocked(now, maxSize)
			q.mu.Unlock()
			return msgs
		}
		next := q.nextWakeLocked()
		q.mu.Unlock()

		if !now.Before(deadline) {
			return nil
		}
		wait := deadline.Sub(now)
		if !next.IsZero() && next.Before(deadline) {
			wait = next.Sub(now)
			if wait < 0 {
				wait = 0
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Acknowledge permanently removes the delivered message.
func (q *Queue) Acknowledge(receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[receipt]; !ok {
		return ErrUnknownReceipt
	}
	delete(q.inflight, receipt)
	return nil
}

// Abandon gives the delivered message back to the queue. It becomes
// eligible for redelivery after the visibility timeout, unless its
// delivery count has reached MaxAttempts, in which case it moves to the
// dead-letter queue instead.
func (q *Queue) Abandon(receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.inflight[receipt]
	if !ok {
		return ErrUnknownReceipt
	}
	delete(q.inflight, receipt)
	q.retireOrRedeliverLocked(e, time.Now().Add(q.cfg.VisibilityTimeout))
	return nil
}

// Depths returns the number of visible, in-flight, and delay-pending
// messages. Used by the metrics snapshot.
func (q *Queue) Depths() (ready, inflight, delayed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.inflight), len(q.delayed)
}

// ---- internals (q.mu held) ----

// promoteLocked moves due delayed entries to ready and implicitly abandons
// in-flight entries whose visibility timeout has lapsed.
func (q *Queue) promoteLocked(now time.Time) {
	kept := q.delayed[:0]
	for _, e := range q.delayed {
		if !e.visibleAt.After(now) {
			q.ready = append(q.ready, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.delayed = kept

	for receipt, e := range q.inflight {
		if e.expiresAt.After(now) {
			continue
		}
		delete(q.inflight, receipt)
		// Timed-out deliveries are redelivered immediately; the timeout
		// itself already served as the invisibility interval.
		q.retireOrRedeliverLocked(e, now)
	}
}

// deliverLocked hands out up to maxSize ready entries as fresh deliveries.
func (q *Queue) deliverLocked(now time.Time, maxSize int) []Message {
	n := len(q.ready)
	if n > maxSize {
		n = maxSize
	}

	msgs := make([]Message, 0, n)
	for _, e := range q.ready[:n] {
		e.deliveries++
		e.receipt = uuid.New().String()
		e.expiresAt = now.Add(q.cfg.VisibilityTimeout)
		q.inflight[e.receipt] = e
		msgs = append(msgs, Message{
			ID:      e.id,
			Event:   e.event,
			Attempt: e.deliveries,
			Receipt: e.receipt,
		})
	}
	q.ready = append(q.ready[:0], q.ready[n:]...)
	return msgs
}

// retireOrRedeliverLocked decides the fate of a failed delivery: back onto
// the delayed list, or over to the dead-letter queue once the delivery
// bound is spent. Without a dead-letter queue the message is dropped.
func (q *Queue) retireOrRedeliverLocked(e *entry, visibleAt time.Time) {
	if e.deliveries >= q.cfg.MaxAttempts {
		if q.dlq != nil {
			q.dlq.Enqueue(e.event)
		}
		return
	}
	e.receipt = ""
	e.visibleAt = visibleAt
	q.delayed = append(q.delayed, e)
	q.signal()
}

// nextWakeLocked returns the earliest instant at which queue state can
// change without an external call: a delayed entry becoming visible or an
// in-flight delivery timing out. Zero when neither exists.
func (q *Queue) nextWakeLocked() time.Time {
	var next time.Time
	for _, e := range q.delayed {
		if next.IsZero() || e.visibleAt.Before(next) {
			next = e.visibleAt
		}
	}
	for _, e := range q.inflight {
		if next.IsZero() || e.expiresAt.Before(next) {
			next = e.expiresAt
		}
	}
	return next
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
