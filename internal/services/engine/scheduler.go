package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/notification"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
	"github.com/Vaarun-C/UptimeMonitor/internal/obs"
)

// Alerter is notified after a recorded transition. Implementations must be
// best-effort: they log their own failures and never propagate them.
type Alerter interface {
	StateChanged(ctx context.Context, t *target.Target, rec *Recorded)
}

// ErrCheckInFlight is returned by on-demand triggers when the target already
// has a probe running; each target has at most one in-flight check.
var ErrCheckInFlight = errors.New("check already in flight for target")

var (
	mSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_sweeps_total", Help: "Completed periodic sweeps",
	})
	mSweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_sweeps_skipped_total", Help: "Sweep ticks skipped because the previous sweep was still draining",
	})
	mSweepDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "engine_sweep_duration_seconds", Help: "Sweep duration",
		Buckets: prometheus.DefBuckets,
	})
	mChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_checks_total", Help: "Check attempts by outcome",
	}, []string{"outcome"})
	mCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "engine_check_latency_seconds", Help: "Probe latency",
		Buckets: prometheus.DefBuckets,
	})
	mTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_transitions_total", Help: "State transitions by new state",
	}, []string{"to"})
	mRecordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_record_errors_total", Help: "Results that failed to record",
	})
	mInflightSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_inflight_skips_total", Help: "Checks skipped because the target already had one in flight",
	})
)

// Runner drives the engine: periodic sweeps over all tracked targets plus
// on-demand single-target and per-owner triggers, all funneled through the
// same Limiter.
type Runner struct {
	log     *zap.Logger
	targets target.Source
	prober  Prober
	sink    Recorder
	lim     *Limiter
	alert   Alerter             // optional
	events  notification.Events // optional

	interval time.Duration
	grace    time.Duration

	sweeping atomic.Bool
	wg       sync.WaitGroup

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewRunner(log *zap.Logger, targets target.Source, prober Prober, sink Recorder, lim *Limiter, interval, grace time.Duration) *Runner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if grace <= 0 {
		grace = 35 * time.Second
	}
	return &Runner{
		log:      log,
		targets:  targets,
		prober:   prober,
		sink:     sink,
		lim:      lim,
		interval: interval,
		grace:    grace,
		inflight: make(map[int64]struct{}),
	}
}

func (r *Runner) WithAlerter(a Alerter) *Runner {
	r.alert = a
	return r
}

func (r *Runner) WithEvents(e notification.Events) *Runner {
	r.events = e
	return r
}

// Run sweeps immediately, then on every tick until ctx is canceled. On
// shutdown no new work is admitted; already-admitted checks get up to the
// grace period to finish on their own timeouts.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) drain() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("engine drained")
	case <-time.After(r.grace):
		r.log.Warn("shutdown grace elapsed with checks still in flight", zap.Duration("grace", r.grace))
	}
}

// tick starts one sweep in the background. If the previous sweep is still
// draining it keeps running and this tick is skipped; the next tick will
// try again.
func (r *Runner) tick(ctx context.Context) {
	if !r.sweeping.CompareAndSwap(false, true) {
		mSweepsSkipped.Inc()
		r.log.Debug("previous sweep still draining; tick skipped")
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sweeping.Store(false)
		r.sweep(ctx)
	}()
}

func (r *Runner) sweep(ctx context.Context) {
	tr := otel.Tracer("engine.runner")
	ctx, span := tr.Start(ctx, "engine.sweep")
	defer span.End()

	start := time.Now()
	targets, err := r.targets.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		obs.WithTrace(ctx, r.log).Warn("list targets", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	submitted := 0
	for _, t := range targets {
		if !r.tryAcquire(t.ID) {
			mInflightSkips.Inc()
			continue
		}
		submitted++
		wg.Add(1)
		go func(t *target.Target) {
			defer wg.Done()
			defer r.release(t.ID)
			_, _ = r.checkTarget(ctx, t)
		}(t)
	}
	wg.Wait()

	mSweeps.Inc()
	mSweepDur.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("sweep.targets", len(targets)),
		attribute.Int("sweep.submitted", submitted),
	)
	obs.WithTrace(ctx, r.log).Debug("sweep complete",
		zap.Int("targets", len(targets)),
		zap.Int("submitted", submitted),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// CheckNow probes one target outside the periodic cadence and returns once
// the result is recorded.
func (r *Runner) CheckNow(ctx context.Context, targetID int64) (*Recorded, error) {
	t, err := r.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	if !r.tryAcquire(t.ID) {
		return nil, ErrCheckInFlight
	}
	r.wg.Add(1)
	defer r.wg.Done()
	defer r.release(t.ID)
	return r.checkTarget(ctx, t)
}

// CheckOwner probes every target the owner has and returns when all of them
// are recorded. Targets that already have a check in flight are skipped. A
// failure on one target does not abort the others; the first error is
// returned alongside the results that did record.
func (r *Runner) CheckOwner(ctx context.Context, ownerID int64) ([]*Recorded, error) {
	targets, err := r.targets.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	var (
		mu  sync.Mutex
		out = make([]*Recorded, 0, len(targets))
		g   errgroup.Group
	)
	for _, t := range targets {
		t := t
		if !r.tryAcquire(t.ID) {
			mInflightSkips.Inc()
			continue
		}
		r.wg.Add(1)
		g.Go(func() error {
			defer r.wg.Done()
			defer r.release(t.ID)
			rec, err := r.checkTarget(ctx, t)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, rec)
			mu.Unlock()
			return nil
		})
	}
	return out, g.Wait()
}

// checkTarget runs one probe through the limiter, records it, and announces
// a transition if one happened. Announcement runs in the background; neither
// the admission slot nor the per-target in-flight slot waits on a sender.
func (r *Runner) checkTarget(ctx context.Context, t *target.Target) (*Recorded, error) {
	var (
		rec    *Recorded
		recErr error
	)
	if err := r.lim.Do(ctx, func() {
		// Once admitted, a check runs to completion even during shutdown;
		// only its own timeout cancels it.
		cctx := context.WithoutCancel(ctx)
		res := r.prober.Check(cctx, t)
		mChecks.WithLabelValues(string(res.Outcome)).Inc()
		mCheckLatency.Observe(float64(res.LatencyMS) / 1000)
		rec, recErr = r.sink.Record(cctx, res)
	}); err != nil {
		return nil, fmt.Errorf("admission: %w", err)
	}
	if recErr != nil {
		mRecordErrors.Inc()
		obs.WithTrace(ctx, r.log).Warn("record result", zap.Int64("target_id", t.ID), zap.Error(recErr))
		return nil, recErr
	}
	if rec.Transition != nil {
		mTransitions.WithLabelValues(string(rec.Transition.To)).Inc()
		// Announced in a tracked goroutine; the target's in-flight slot
		// must not wait on a slow sender.
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.announce(context.WithoutCancel(ctx), t, rec)
		}()
	}
	return rec, nil
}

func (r *Runner) announce(ctx context.Context, t *target.Target, rec *Recorded) {
	if r.events != nil {
		if err := r.events.PublishStateChanged(ctx, t.ID, rec.Transition.From, rec.Transition.To); err != nil {
			r.log.Warn("publish state change", zap.Int64("target_id", t.ID), zap.Error(err))
		}
	}
	if r.alert != nil {
		r.alert.StateChanged(ctx, t, rec)
	}
}

func (r *Runner) tryAcquire(targetID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[targetID]; busy {
		return false
	}
	r.inflight[targetID] = struct{}{}
	return true
}

func (r *Runner) release(targetID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, targetID)
}
