package probe

import "time"

// Outcome classifies a single check attempt. All four values are terminal;
// the engine never retries an attempt on its own.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeHTTPError       Outcome = "http_error"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeConnectionError Outcome = "connection_error"
)

// Result is the immutable outcome of one probe. Code is nil when the
// transport failed before any response (timeout, DNS, refused, TLS).
type Result struct {
	TargetID  int64     `json:"target_id"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Code      *int      `json:"code"`
	LatencyMS int64     `json:"latency_ms"`
	Outcome   Outcome   `json:"outcome"`
}
