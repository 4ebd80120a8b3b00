package notification

import (
	"context"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// Sender delivers a rendered notification. Delivery is best-effort: callers
// log failures and move on, a broken sender must never stall the check
// pipeline.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Events is the optional state-change event stream.
type Events interface {
	PublishStateChanged(ctx context.Context, targetID int64, from, to target.Status) error
}
