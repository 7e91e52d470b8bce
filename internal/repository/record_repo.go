package repository

import (
	"context"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// RecordRepository defines all persistence operations for records.
// The pgx implementation is in pg_record_repo.go.
// Tests use a hand-written mock (mock_record_repo.go).
//
// Every write is a single-key idempotent upsert/update/delete, so callers
// need no cross-worker locking. Implementations publish a RecordChange on
// the change feed after each committed write.
type RecordRepository interface {
	// Upsert creates or replaces the record for its key. Applying the same
	// record twice leaves the table in the same final state as applying it
	// once.
	Upsert(ctx context.Context, rec *domain.Record) error

	// UpdateDescription sets the description attribute of an existing
	// record. A missing record returns domain.ErrNotFound.
	UpdateDescription(ctx context.Context, key, description string) error

	// Delete removes the record. Deleting an absent key is a no-op (no
	// error, no change published).
	Delete(ctx context.Context, key string) error

	GetByKey(ctx context.Context, key string) (*domain.Record, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Record, int, error)
}
