package history

import (
	"context"
	"time"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// Store is the persistence collaborator for the check-history log and the
// per-target known state. Append and SetState are transaction-aware: when
// called under the Transactor both land in the same transaction.
type Store interface {
	Append(ctx context.Context, r *probe.Result) error
	QueryWindow(ctx context.Context, targetID int64, since time.Time) ([]*probe.Result, error)
	GetState(ctx context.Context, targetID int64) (target.Status, error)
	SetState(ctx context.Context, targetID int64, s target.Status) error
}
