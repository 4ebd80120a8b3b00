package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/notification"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

type StateChangedPayload struct {
	TargetID int64     `json:"target_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	At       time.Time `json:"at"`
}

var _ notification.Events = (*StateEvents)(nil)

// StateEvents publishes up/down transitions onto the event stream.
type StateEvents struct {
	p *Producer
}

func NewStateEvents(p *Producer) *StateEvents { return &StateEvents{p: p} }

func (e *StateEvents) PublishStateChanged(ctx context.Context, targetID int64, from, to target.Status) error {
	b, err := json.Marshal(StateChangedPayload{
		TargetID: targetID,
		From:     string(from),
		To:       string(to),
		At:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return e.p.Publish(ctx, KeyFromInt64(targetID), b)
}
