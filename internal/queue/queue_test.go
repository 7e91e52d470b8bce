package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/queue"
)

func event(key string) domain.Event {
	return domain.Event{
		Kind:            domain.KindCreated,
		ResourceKey:     key,
		SourceContainer: "imgs",
		EventName:       "ObjectCreated:Put",
	}
}

// fastCfg keeps redelivery timings tight so tests run in milliseconds.
func fastCfg(maxAttempts int) queue.Config {
	return queue.Config{
		MaxAttempts:       maxAttempts,
		VisibilityTimeout: 20 * time.Millisecond,
		PropagationDelay:  5 * time.Millisecond,
	}
}

func TestQueue_EnqueueDequeueAcknowledge(t *testing.T) {
	q := queue.New(fastCfg(3))
	q.Enqueue(event("cat.png"))

	msgs := q.DequeueBatch(context.Background(), 10, time.Second)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Attempt != 1 {
		t.Fatalf("expected attempt=1 on first delivery, got %d", msgs[0].Attempt)
	}
	if msgs[0].Receipt == "" {
		t.Fatal("expected an opaque receipt")
	}

	if err := q.Acknowledge(msgs[0].Receipt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Acknowledged messages are gone for good.
	if again := q.DequeueBatch(context.Background(), 10, 50*time.Millisecond); len(again) != 0 {
		t.Fatalf("acknowledged message was redelivered: %+v", again)
	}
}

// TestQueue_PropagationDelay verifies eventual rather than immediate
// visibility: a freshly enqueued message is not dequeued before the delay.
func TestQueue_PropagationDelay(t *testing.T) {
	q := queue.New(queue.Config{
		MaxAttempts:       3,
		VisibilityTimeout: time.Second,
		PropagationDelay:  60 * time.Millisecond,
	})
	q.Enqueue(event("cat.png"))

	if msgs := q.DequeueBatch(context.Background(), 10, 10*time.Millisecond); len(msgs) != 0 {
		t.Fatalf("message visible before propagation delay: %+v", msgs)
	}

	msgs := q.DequeueBatch(context.Background(), 10, time.Second)
	if len(msgs) != 1 {
		t.Fatalf("message never became visible")
	}
}

func TestQueue_AbandonRedeliversWithIncrementedAttempt(t *testing.T) {
	q := queue.New(fastCfg(3))
	q.Enqueue(event("cat.png"))

	first := q.DequeueBatch(context.Background(), 1, time.Second)
	if len(first) != 1 {
		t.Fatal("expected a delivery")
	}
	if err := q.Abandon(first[0].Receipt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := q.DequeueBatch(context.Background(), 1, time.Second)
	if len(second) != 1 {
		t.Fatal("abandoned message was not redelivered")
	}
	if second[0].Attempt != 2 {
		t.Fatalf("expected attempt=2, got %d", second[0].Attempt)
	}
	if second[0].ID != first[0].ID {
		t.Fatal("redelivery changed the message identity")
	}
	if second[0].Receipt == first[0].Receipt {
		t.Fatal("redelivery reused the old receipt")
	}
}

func TestQueue_StaleReceiptRejected(t *testing.T) {
	q := queue.New(fastCfg(3))
	q.Enqueue(event("cat.png"))

	msgs := q.DequeueBatch(context.Background(), 1, time.Second)
	old := msgs[0].Receipt
	_ = q.Abandon(old)

	if err := q.Acknowledge(old); err != queue.ErrUnknownReceipt {
		t.Fatalf("expected ErrUnknownReceipt for stale receipt, got %v", err)
	}
	if err := q.Abandon("never-issued"); err != queue.ErrUnknownReceipt {
		t.Fatalf("expected ErrUnknownReceipt for unknown receipt, got %v", err)
	}
}

// TestQueue_VisibilityTimeoutRedelivers covers abandon-by-timeout: a
// delivery that is neither acknowledged nor abandoned comes back on its own.
func TestQueue_VisibilityTimeoutRedelivers(t *testing.T) {
	q := queue.New(fastCfg(3))
	q.Enqueue(event("cat.png"))

	first := q.DequeueBatch(context.Background(), 1, time.Second)
	if len(first) != 1 {
		t.Fatal("expected a delivery")
	}
	// Do nothing with the receipt; wait out the visibility timeout.

	second := q.DequeueBatch(context.Background(), 1, time.Second)
	if len(second) != 1 {
		t.Fatal("timed-out message was not redelivered")
	}
	if second[0].Attempt != 2 {
		t.Fatalf("expected attempt=2 after timeout, got %d", second[0].Attempt)
	}

	// The first delivery's receipt is now stale.
	if err := q.Acknowledge(first[0].Receipt); err != queue.ErrUnknownReceipt {
		t.Fatalf("expected ErrUnknownReceipt, got %v", err)
	}
}

// TestQueue_DeadLetterTerminality drives a message through its full retry
// budget and verifies it lands on the dead-letter queue exactly once and
// never reappears on the primary.
func TestQueue_DeadLetterTerminality(t *testing.T) {
	dlq := queue.New(queue.Config{MaxAttempts: 1, VisibilityTimeout: time.Second})
	q := queue.NewWithDeadLetter(fastCfg(2), dlq)
	ctx := context.Background()

	q.Enqueue(event("doc.pdf"))

	for attempt := 1; attempt <= 2; attempt++ {
		msgs := q.DequeueBatch(ctx, 1, time.Second)
		if len(msgs) != 1 {
			t.Fatalf("attempt %d: expected a delivery", attempt)
		}
		if msgs[0].Attempt != attempt {
			t.Fatalf("expected attempt=%d, got %d", attempt, msgs[0].Attempt)
		}
		if err := q.Abandon(msgs[0].Receipt); err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
	}

	// Retry budget spent: the primary queue must stay empty.
	if msgs := q.DequeueBatch(ctx, 1, 100*time.Millisecond); len(msgs) != 0 {
		t.Fatalf("dead-lettered message reappeared on the primary queue: %+v", msgs)
	}

	dead := dlq.DequeueBatch(ctx, 10, time.Second)
	if len(dead) != 1 {
		t.Fatalf("expected exactly 1 dead-lettered message, got %d", len(dead))
	}
	if dead[0].Event.ResourceKey != "doc.pdf" {
		t.Fatalf("dead letter carries wrong event: %+v", dead[0].Event)
	}
}

func TestQueue_BatchSizeRespected(t *testing.T) {
	q := queue.New(fastCfg(3))
	for i := 0; i < 5; i++ {
		q.Enqueue(event("cat.png"))
	}

	msgs := q.DequeueBatch(context.Background(), 3, time.Second)
	if len(msgs) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(msgs))
	}

	rest := q.DequeueBatch(context.Background(), 10, time.Second)
	if len(rest) != 2 {
		t.Fatalf("expected remaining 2, got %d", len(rest))
	}
}

// TestQueue_PerMessageDecisions verifies acknowledge/abandon independence
// inside one fetched batch: abandoning one message must not affect its
// acknowledged siblings.
func TestQueue_PerMessageDecisions(t *testing.T) {
	q := queue.New(fastCfg(3))
	q.Enqueue(event("a.png"))
	q.Enqueue(event("b.pdf"))
	q.Enqueue(event("c.jpeg"))

	msgs := q.DequeueBatch(context.Background(), 3, time.Second)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	for _, m := range msgs {
		if m.Event.ResourceKey == "b.pdf" {
			_ = q.Abandon(m.Receipt)
		} else {
			_ = q.Acknowledge(m.Receipt)
		}
	}

	redelivered := q.DequeueBatch(context.Background(), 10, time.Second)
	if len(redelivered) != 1 || redelivered[0].Event.ResourceKey != "b.pdf" {
		t.Fatalf("expected only b.pdf back, got %+v", redelivered)
	}
}

func TestQueue_DequeueContextCancellation(t *testing.T) {
	q := queue.New(fastCfg(3))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int, 1)
	go func() {
		done <- len(q.DequeueBatch(ctx, 1, time.Minute))
	}()

	cancel()

	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("expected empty batch after cancellation, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("DequeueBatch did not return after context cancellation")
	}
}

// TestQueue_ConcurrentProducersConsumers verifies there are no races and no
// message loss with several producers and consumers running at once.
func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := queue.New(queue.Config{
		MaxAttempts:       3,
		VisibilityTimeout: time.Second,
		PropagationDelay:  time.Millisecond,
	})

	const producers = 4
	const perProducer = 50
	const total = producers * perProducer

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(event("cat.png"))
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan queue.Message, total)
	var consumers sync.WaitGroup
	for i := 0; i < 3; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for ctx.Err() == nil {
				for _, m := range q.DequeueBatch(ctx, 10, 100*time.Millisecond) {
					if err := q.Acknowledge(m.Receipt); err != nil {
						t.Errorf("acknowledge: %v", err)
					}
					received <- m
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		select {
		case <-received:
		case <-ctx.Done():
			t.Fatalf("timeout: only received %d/%d messages", i, total)
		}
	}
	cancel()
	consumers.Wait()
}

func TestQueue_Depths(t *testing.T) {
	q := queue.New(queue.Config{
		MaxAttempts:       3,
		VisibilityTimeout: time.Second,
		PropagationDelay:  0,
	})
	q.Enqueue(event("a.png"))
	q.Enqueue(event("b.png"))

	ready, inflight, delayed := q.Depths()
	if ready != 2 || inflight != 0 || delayed != 0 {
		t.Fatalf("unexpected depths: ready=%d inflight=%d delayed=%d", ready, inflight, delayed)
	}

	_ = q.DequeueBatch(context.Background(), 1, time.Second)
	ready, inflight, _ = q.Depths()
	if ready != 1 || inflight != 1 {
		t.Fatalf("unexpected depths after dequeue: ready=%d inflight=%d", ready, inflight)
	}
}
