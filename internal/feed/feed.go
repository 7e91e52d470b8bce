// Package feed carries committed record mutations from the repository to
// the change notifier. Ordering is guaranteed only per key: repositories
// publish each change after its write commits, so two writes to the same
// key appear in commit order, while changes across keys may interleave.
package feed

import (
	"context"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// Feed is a buffered, in-process change stream. Delivery is at-least-once
// from the consumer's point of view (a consumer that crashes mid-change and
// restarts may observe a change twice at the infrastructure level), so
// consumers must tolerate duplicates.
type Feed struct {
	ch chan domain.RecordChange
}

// New creates a feed with the given buffer capacity.
func New(buffer int) *Feed {
	return &Feed{ch: make(chan domain.RecordChange, buffer)}
}

// Publish places a change on the feed. It blocks only when the buffer is
// full, which preserves per-key ordering under back-pressure instead of
// dropping changes.
func (f *Feed) Publish(change domain.RecordChange) {
	f.ch <- change
}

// Changes returns the receive side of the feed.
func (f *Feed) Changes() <-chan domain.RecordChange {
	return f.ch
}

// Next blocks until a change is available or ctx is cancelled.
// Returns (change, false) on cancellation.
func (f *Feed) Next(ctx context.Context) (domain.RecordChange, bool) {
	select {
	case change := <-f.ch:
		return change, true
	case <-ctx.Done():
		return domain.RecordChange{}, false
	}
}

// Depth returns the number of buffered, unconsumed changes.
func (f *Feed) Depth() int {
	return len(f.ch)
}
