package history

import (
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// Window is the rolling uptime view over a trailing span. It is always
// recomputed from the raw check log, never persisted, so the percentage
// cannot drift from the history it summarizes.
type Window struct {
	Total         int           `json:"total"`
	Successful    int           `json:"successful"`
	Percentage    *float64      `json:"percentage"`
	LastLatencyMS int64         `json:"last_latency_ms"`
	LastState     target.Status `json:"last_state"`
}

// Compute derives a Window from results ordered oldest first. With no
// results the percentage stays nil and the state stays unknown.
func Compute(results []*probe.Result) Window {
	w := Window{LastState: target.StatusUnknown}
	for _, r := range results {
		w.Total++
		if r.Success {
			w.Successful++
		}
		w.LastLatencyMS = r.LatencyMS
		w.LastState = target.FromSuccess(r.Success)
	}
	if w.Total > 0 {
		pct := 100 * float64(w.Successful) / float64(w.Total)
		w.Percentage = &pct
	}
	return w
}
