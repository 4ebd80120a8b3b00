package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/owner"
)

var _ owner.Directory = (*OwnerRepo)(nil)

type OwnerRepo struct {
	db *DB
}

func NewOwnerRepo(db *DB) *OwnerRepo { return &OwnerRepo{db: db} }

const (
	qOwnerByID = `
SELECT id, username, email
FROM users
WHERE id = $1;
`

	qOwnersWithTargets = `
SELECT DISTINCT u.id, u.username, u.email
FROM users u
INNER JOIN urls ON u.id = urls.user_id
ORDER BY u.id;
`
)

func (r *OwnerRepo) GetByID(ctx context.Context, id int64) (*owner.Owner, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var o owner.Owner
	if err := r.db.Pool.QueryRow(ctx, qOwnerByID, id).Scan(&o.ID, &o.Username, &o.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return &o, nil
}

func (r *OwnerRepo) ListWithTargets(ctx context.Context) ([]*owner.Owner, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qOwnersWithTargets)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var out []*owner.Owner
	for rows.Next() {
		var o owner.Owner
		if err := rows.Scan(&o.ID, &o.Username, &o.Email); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
