package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/history"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

var _ history.Store = (*HistoryRepo)(nil)

// HistoryRepo persists the append-only check log and the per-target known
// state. Append and SetState go through the tx-aware queryer so the
// aggregator can commit both in one transaction.
type HistoryRepo struct {
	db *DB
}

func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

const (
	qCheckInsert = `
INSERT INTO checks (url_id, ts, success, code, latency_ms, outcome)
VALUES ($1, $2, $3, $4, $5, $6);
`

	qChecksSince = `
SELECT ts, success, code, latency_ms, outcome
FROM checks
WHERE url_id = $1 AND ts >= $2
ORDER BY ts;
`

	qStateGet = `SELECT state FROM urls WHERE id = $1;`

	qStateSet = `UPDATE urls SET state = $2 WHERE id = $1;`
)

func (r *HistoryRepo) Append(ctx context.Context, res *probe.Result) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qCheckInsert,
		res.TargetID, res.Timestamp, res.Success, res.Code, res.LatencyMS, string(res.Outcome),
	); err != nil {
		return fmt.Errorf("append check: %w", err)
	}
	return nil
}

func (r *HistoryRepo) QueryWindow(ctx context.Context, targetID int64, since time.Time) ([]*probe.Result, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qChecksSince, targetID, since)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []*probe.Result
	for rows.Next() {
		res := probe.Result{TargetID: targetID}
		var outcome string
		if err := rows.Scan(&res.Timestamp, &res.Success, &res.Code, &res.LatencyMS, &outcome); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		res.Outcome = probe.Outcome(outcome)
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *HistoryRepo) GetState(ctx context.Context, targetID int64) (target.Status, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s target.Status
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qStateGet, targetID).Scan(&s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return target.StatusUnknown, ErrNotFound
		}
		return target.StatusUnknown, fmt.Errorf("get state: %w", err)
	}
	return s, nil
}

func (r *HistoryRepo) SetState(ctx context.Context, targetID int64, s target.Status) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qStateSet, targetID, s)
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
