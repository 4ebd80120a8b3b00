package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

var _ target.Source = (*TargetRepo)(nil)

type TargetRepo struct {
	db *DB
}

func NewTargetRepo(db *DB) *TargetRepo { return &TargetRepo{db: db} }

const (
	qTargetByID = `
SELECT id, user_id, url, category, state, created_at
FROM urls
WHERE id = $1;
`

	qTargetsAll = `
SELECT id, user_id, url, category, state, created_at
FROM urls
ORDER BY id;
`

	qTargetsByOwner = `
SELECT id, user_id, url, category, state, created_at
FROM urls
WHERE user_id = $1
ORDER BY created_at DESC;
`
)

func scanTarget(row pgx.Row, t *target.Target) error {
	var category *string
	if err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.URL,
		&category,
		&t.State,
		&t.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan target: %w", err)
	}
	if category != nil {
		t.Category = *category
	}
	return nil
}

func (r *TargetRepo) GetByID(ctx context.Context, id int64) (*target.Target, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t target.Target
	if err := scanTarget(r.db.Pool.QueryRow(ctx, qTargetByID, id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TargetRepo) ListAll(ctx context.Context) ([]*target.Target, error) {
	return r.list(ctx, qTargetsAll)
}

func (r *TargetRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*target.Target, error) {
	return r.list(ctx, qTargetsByOwner, ownerID)
}

func (r *TargetRepo) list(ctx context.Context, q string, args ...any) ([]*target.Target, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []*target.Target
	for rows.Next() {
		var t target.Target
		if err := scanTarget(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
