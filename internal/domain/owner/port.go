package owner

import "context"

// Directory resolves target owners for notification delivery.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*Owner, error)
	// ListWithTargets returns only owners that have at least one monitored URL.
	ListWithTargets(ctx context.Context) ([]*Owner, error)
}
