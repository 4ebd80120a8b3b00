package target

import "context"

// Source is the engine's read-only view of the URL-management collaborator.
// The engine never mutates ownership, only the current known state.
type Source interface {
	GetByID(ctx context.Context, id int64) (*Target, error)
	ListAll(ctx context.Context) ([]*Target, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*Target, error)
}
