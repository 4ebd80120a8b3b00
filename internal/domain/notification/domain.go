package notification

import (
	"time"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// Summary is the structured payload handed to the delivery collaborator.
type Summary struct {
	TargetID  int64         `json:"target_id"`
	URL       string        `json:"url"`
	Category  string        `json:"category"`
	State     target.Status `json:"state"`
	Uptime    *float64      `json:"uptime_percentage"`
	LatencyMS int64         `json:"latency_ms"`
	At        time.Time     `json:"at"`
}

type Clock interface {
	Now() time.Time
}
