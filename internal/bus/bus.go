// Package bus fans domain events out to subscribed destinations under
// declared predicates. Destinations never know about each other; an event
// may match zero, one, or many of them.
package bus

import (
	"context"

	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// DeliverFunc receives a matched event. Errors are logged per destination
// and never affect delivery to sibling destinations.
type DeliverFunc func(ctx context.Context, ev domain.Event) error

// Subscription pairs a predicate with its destination. Declared once at
// wiring time.
type Subscription struct {
	Name      string
	Predicate Predicate
	Deliver   DeliverFunc
}

// Bus evaluates all subscriptions for every published event, in
// registration order. Evaluation never short-circuits, which keeps
// duplicate-dispatch bugs deterministic and reproducible.
type Bus struct {
	subs   []Subscription
	logger *zap.Logger

	// onUnmatched counts silently dropped events (nil = no-op).
	onUnmatched func()
}

func New(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// OnUnmatched installs a hook invoked once per event that matched no
// subscription. Used by main to feed the drop counter.
func (b *Bus) OnUnmatched(fn func()) {
	b.onUnmatched = fn
}

// Subscribe registers a destination. Registration order is the evaluation
// order; call only during wiring, before Publish is used.
func (b *Bus) Subscribe(name string, p Predicate, deliver DeliverFunc) {
	b.subs = append(b.subs, Subscription{Name: name, Predicate: p, Deliver: deliver})
}

// Publish evaluates every subscription against ev and delivers to all
// matches. An event matching nothing is silently dropped: broad
// notification topics are shared by multiple features and unmatched
// traffic is expected. Returns the number of destinations delivered to.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) int {
	matched := 0
	for i, sub := range b.subs {
		if !sub.Predicate(ev) {
			continue
		}
		matched++
		if err := sub.Deliver(ctx, ev); err != nil {
			b.logger.Error("destination delivery failed",
				zap.String("subscription", sub.Name),
				zap.Int("order", i),
				zap.String("resource_key", ev.ResourceKey),
				zap.String("event_name", ev.EventName),
				zap.Error(err),
			)
		}
	}

	if matched == 0 {
		b.logger.Debug("event matched no subscription",
			zap.String("event_name", ev.EventName),
			zap.String("resource_key", ev.ResourceKey),
		)
		if b.onUnmatched != nil {
			b.onUnmatched()
		}
	}
	return matched
}

// Subscriptions returns the registered subscriptions in evaluation order.
func (b *Bus) Subscriptions() []Subscription {
	return b.subs
}
