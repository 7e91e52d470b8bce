package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/feed"
)

func TestPublishThenNext(t *testing.T) {
	f := feed.New(4)

	f.Publish(domain.RecordChange{Op: domain.ChangeInsert, Key: "a.png"})
	f.Publish(domain.RecordChange{Op: domain.ChangeRemove, Key: "a.png"})

	if f.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", f.Depth())
	}

	first, ok := f.Next(context.Background())
	if !ok || first.Op != domain.ChangeInsert {
		t.Fatalf("first change = %+v, ok = %v; want INSERT", first, ok)
	}
	second, ok := f.Next(context.Background())
	if !ok || second.Op != domain.ChangeRemove {
		t.Fatalf("second change = %+v, ok = %v; want REMOVE", second, ok)
	}
}

func TestNextReturnsOnCancel(t *testing.T) {
	f := feed.New(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := f.Next(ctx)
	if ok {
		t.Fatal("Next on an empty feed returned ok after cancellation")
	}
}
