package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/feed"
)

// MockRecordRepository is a hand-written, in-memory implementation of
// RecordRepository used in unit tests. No mock-generation library needed.
// It publishes the same change-feed entries as the Postgres implementation.
type MockRecordRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
	feed    *feed.Feed

	// Optional error overrides, set in tests to simulate failure paths.
	UpsertErr            error
	UpdateDescriptionErr error
	DeleteErr            error
	GetErr               error

	// UpsertCalls counts Upsert invocations, including failed ones.
	UpsertCalls int
}

// NewMockRecordRepository creates an empty mock. changeFeed may be nil.
func NewMockRecordRepository(changeFeed *feed.Feed) *MockRecordRepository {
	return &MockRecordRepository{
		records: make(map[string]*domain.Record),
		feed:    changeFeed,
	}
}

func (m *MockRecordRepository) Upsert(ctx context.Context, rec *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	now := time.Now().UTC()
	old, existed := m.records[rec.ResourceKey]

	stored := cloneRecord(rec)
	stored.UpdatedAt = now
	if existed {
		stored.CreatedAt = old.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	m.records[rec.ResourceKey] = stored
	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = stored.UpdatedAt

	if m.feed != nil {
		op := domain.ChangeInsert
		var oldImage *domain.Record
		if existed {
			op = domain.ChangeModify
			oldImage = cloneRecord(old)
		}
		m.feed.Publish(domain.RecordChange{
			Op:       op,
			Key:      rec.ResourceKey,
			OldImage: oldImage,
			NewImage: cloneRecord(stored),
			At:       now,
		})
	}
	return nil
}

func (m *MockRecordRepository) UpdateDescription(ctx context.Context, key, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateDescriptionErr != nil {
		return m.UpdateDescriptionErr
	}

	rec, ok := m.records[key]
	if !ok {
		return domain.ErrNotFound
	}

	old := cloneRecord(rec)
	d := description
	rec.Description = &d
	rec.UpdatedAt = time.Now().UTC()

	if m.feed != nil {
		m.feed.Publish(domain.RecordChange{
			Op:       domain.ChangeModify,
			Key:      key,
			OldImage: old,
			NewImage: cloneRecord(rec),
			At:       rec.UpdatedAt,
		})
	}
	return nil
}

func (m *MockRecordRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	rec, ok := m.records[key]
	if !ok {
		return nil
	}
	delete(m.records, key)

	if m.feed != nil {
		m.feed.Publish(domain.RecordChange{
			Op:       domain.ChangeRemove,
			Key:      key,
			OldImage: cloneRecord(rec),
			At:       time.Now().UTC(),
		})
	}
	return nil
}

func (m *MockRecordRepository) GetByKey(ctx context.Context, key string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MockRecordRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Record
	for _, rec := range m.records {
		if f.Extension != nil && rec.Extension != *f.Extension {
			continue
		}
		if f.From != nil && rec.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && rec.CreatedAt.After(*f.To) {
			continue
		}
		matched = append(matched, cloneRecord(rec))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Len returns the number of stored records.
func (m *MockRecordRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// compile-time check that the mock satisfies the interface
var _ RecordRepository = (*MockRecordRepository)(nil)
