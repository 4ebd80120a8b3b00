package target

import "time"

// Status is the last known availability of a monitored URL.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// FromSuccess maps a single check outcome onto a target status.
func FromSuccess(ok bool) Status {
	if ok {
		return StatusUp
	}
	return StatusDown
}

type Target struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	URL       string    `json:"url"`
	Category  string    `json:"category"`
	State     Status    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
