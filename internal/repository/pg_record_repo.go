package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/feed"
)

type pgRecordRepository struct {
	pool *pgxpool.Pool
	feed *feed.Feed
}

// NewPgRecordRepository returns a RecordRepository backed by PostgreSQL.
// Committed writes are published to changeFeed; pass nil to disable
// publishing (read-only consumers).
func NewPgRecordRepository(pool *pgxpool.Pool, changeFeed *feed.Feed) RecordRepository {
	return &pgRecordRepository{pool: pool, feed: changeFeed}
}

func (r *pgRecordRepository) Upsert(ctx context.Context, rec *domain.Record) error {
	// The pre-image is read first so a replace can publish a MODIFY change
	// carrying it. Writes to one key are per-key sequential (queue
	// visibility guarantees a single worker holds the message), so the
	// read-then-upsert pair does not race with itself.
	old, err := r.GetByKey(ctx, rec.ResourceKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("read pre-image: %w", err)
	}

	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO records (resource_key, extension, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (resource_key) DO UPDATE
		SET extension   = EXCLUDED.extension,
		    description = EXCLUDED.description,
		    updated_at  = EXCLUDED.updated_at
		RETURNING (xmax = 0), created_at, updated_at`,
		rec.ResourceKey, rec.Extension, rec.Description, time.Now().UTC(),
	)

	var inserted bool
	if err := row.Scan(&inserted, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}

	if r.feed != nil {
		op := domain.ChangeModify
		if inserted {
			op = domain.ChangeInsert
			old = nil
		}
		r.feed.Publish(domain.RecordChange{
			Op:       op,
			Key:      rec.ResourceKey,
			OldImage: old,
			NewImage: cloneRecord(rec),
			At:       rec.UpdatedAt,
		})
	}
	return nil
}

func (r *pgRecordRepository) UpdateDescription(ctx context.Context, key, description string) error {
	old, err := r.GetByKey(ctx, key)
	if err != nil {
		return err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE records
		SET description = $1, updated_at = $2
		WHERE resource_key = $3
		RETURNING resource_key, extension, description, created_at, updated_at`,
		description, time.Now().UTC(), key,
	)

	updated, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update description: %w", err)
	}

	if r.feed != nil {
		r.feed.Publish(domain.RecordChange{
			Op:       domain.ChangeModify,
			Key:      key,
			OldImage: old,
			NewImage: updated,
			At:       updated.UpdatedAt,
		})
	}
	return nil
}

func (r *pgRecordRepository) Delete(ctx context.Context, key string) error {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM records
		WHERE resource_key = $1
		RETURNING resource_key, extension, description, created_at, updated_at`, key)

	old, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // deleting an absent key is a no-op
	}
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if r.feed != nil {
		r.feed.Publish(domain.RecordChange{
			Op:       domain.ChangeRemove,
			Key:      key,
			OldImage: old,
			At:       time.Now().UTC(),
		})
	}
	return nil
}

func (r *pgRecordRepository) GetByKey(ctx context.Context, key string) (*domain.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT resource_key, extension, description, created_at, updated_at
		FROM records WHERE resource_key = $1`, key)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func (r *pgRecordRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Record, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	countQuery := "SELECT COUNT(*) FROM records" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT resource_key, extension, description, created_at, updated_at
		FROM records%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// ---- helpers ----

// scanRecord reads a single record row from any pgx row type.
func scanRecord(row pgx.Row) (*domain.Record, error) {
	var rec domain.Record
	err := row.Scan(&rec.ResourceKey, &rec.Extension, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func cloneRecord(rec *domain.Record) *domain.Record {
	clone := *rec
	if rec.Description != nil {
		d := *rec.Description
		clone.Description = &d
	}
	return &clone
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Extension != nil {
		add("extension = $%d", *f.Extension)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
