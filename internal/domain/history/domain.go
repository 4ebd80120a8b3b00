package history

import (
	"time"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// Transition records a target moving between up and down.
type Transition struct {
	TargetID int64         `json:"target_id"`
	From     target.Status `json:"from"`
	To       target.Status `json:"to"`
	At       time.Time     `json:"at"`
}
