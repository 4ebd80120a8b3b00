package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/history"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/notification"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/owner"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
	"github.com/Vaarun-C/UptimeMonitor/internal/services/engine"
)

var (
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_sent_total", Help: "Notifications delivered",
	})
	mSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_errors_total", Help: "Notification delivery failures (swallowed)",
	})
)

// Dispatch builds notification summaries and hands them to the delivery
// collaborator. Delivery failures are logged and swallowed; nothing here may
// fail or block the check pipeline.
type Dispatch struct {
	log     *zap.Logger
	targets target.Source
	owners  owner.Directory
	store   history.Store
	out     notification.Sender
	clock   notification.Clock
	window  time.Duration
}

func NewDispatch(
	log *zap.Logger,
	targets target.Source,
	owners owner.Directory,
	store history.Store,
	out notification.Sender,
	clock notification.Clock,
	window time.Duration,
) *Dispatch {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Dispatch{
		log:     log,
		targets: targets,
		owners:  owners,
		store:   store,
		out:     out,
		clock:   clock,
		window:  window,
	}
}

var _ engine.Alerter = (*Dispatch)(nil)

// StateChanged mails the owner about an up/down transition.
func (d *Dispatch) StateChanged(ctx context.Context, t *target.Target, rec *engine.Recorded) {
	sum := notification.Summary{
		TargetID:  t.ID,
		URL:       t.URL,
		Category:  t.Category,
		State:     rec.Transition.To,
		Uptime:    rec.Window.Percentage,
		LatencyMS: rec.Result.LatencyMS,
		At:        rec.Transition.At,
	}

	o, err := d.owners.GetByID(ctx, t.OwnerID)
	if err != nil {
		mSendErrors.Inc()
		d.log.Warn("resolve owner", zap.Int64("target_id", t.ID), zap.Int64("owner_id", t.OwnerID), zap.Error(err))
		return
	}

	subject := fmt.Sprintf("Site %s: %s", sum.State, sum.URL)
	body := fmt.Sprintf(
		"Hello %s!\n\nYour site %s is now %s (as of %s).\nUptime over the last 24h: %s, latest latency %dms.\n\n-- UptimeMonitor",
		o.Username, sum.URL, sum.State, sum.At.UTC().Format(time.RFC3339),
		formatPct(sum.Uptime), sum.LatencyMS,
	)

	if err := d.out.Send(ctx, o.Email, subject, body); err != nil {
		mSendErrors.Inc()
		d.log.Warn("send transition notification", zap.Int64("target_id", t.ID), zap.Error(err))
		return
	}
	mSent.Inc()
}

// OwnerReport mails one owner a digest of all their targets with rolling
// uptime. Lookup failures are returned; a delivery failure is logged and
// swallowed like every other send.
func (d *Dispatch) OwnerReport(ctx context.Context, ownerID int64) error {
	o, err := d.owners.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("get owner: %w", err)
	}
	targets, err := d.targets.ListByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	if len(targets) == 0 {
		d.log.Debug("owner has no targets; report skipped", zap.Int64("owner_id", ownerID))
		return nil
	}

	now := d.clock.Now().UTC()
	down := 0
	var b strings.Builder
	for _, t := range targets {
		results, err := d.store.QueryWindow(ctx, t.ID, now.Add(-d.window))
		if err != nil {
			d.log.Warn("query window for report", zap.Int64("target_id", t.ID), zap.Error(err))
			continue
		}
		w := history.Compute(results)
		if w.LastState == target.StatusDown {
			down++
		}
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}
		fmt.Fprintf(&b, "- %s: %s, uptime %s, latest latency %dms (%s)\n",
			t.URL, stateOrUnknown(w.LastState), formatPct(w.Percentage), w.LastLatencyMS, category)
	}

	var subject string
	if down > 0 {
		subject = fmt.Sprintf("%d site(s) need attention - Uptime Report", down)
	} else {
		subject = "All systems operational - Uptime Report"
	}
	body := fmt.Sprintf(
		"Hello %s!\n\nYour uptime report for %s:\n\n%s\nMonitored sites: %d, needing attention: %d.\nUptime percentages cover the last 24 hours.\n\n-- UptimeMonitor",
		o.Username, now.Format(time.RFC3339), b.String(), len(targets), down,
	)

	if err := d.out.Send(ctx, o.Email, subject, body); err != nil {
		mSendErrors.Inc()
		d.log.Warn("send owner report", zap.Int64("owner_id", ownerID), zap.Error(err))
		return nil
	}
	mSent.Inc()
	return nil
}

// Run broadcasts owner digests on the given cadence until ctx is canceled.
func (d *Dispatch) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.BroadcastReports(ctx); err != nil {
				d.log.Warn("broadcast reports", zap.Error(err))
			}
		}
	}
}

// BroadcastReports mails a digest to every owner that has targets. Failures
// for one owner never stop the rest.
func (d *Dispatch) BroadcastReports(ctx context.Context) error {
	owners, err := d.owners.ListWithTargets(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	for _, o := range owners {
		if err := d.OwnerReport(ctx, o.ID); err != nil {
			d.log.Warn("owner report", zap.Int64("owner_id", o.ID), zap.Error(err))
		}
	}
	return nil
}

func formatPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *p)
}

func stateOrUnknown(s target.Status) string {
	if s == "" {
		return string(target.StatusUnknown)
	}
	return string(s)
}
