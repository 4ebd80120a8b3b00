package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/history"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
	"github.com/Vaarun-C/UptimeMonitor/internal/repository/postgres"
)

// Recorder sinks completed check results.
type Recorder interface {
	Record(ctx context.Context, res *probe.Result) (*Recorded, error)
}

// Recorded is what one Record call produced: the result itself, the freshly
// recomputed rolling window, and the transition if the target changed state.
type Recorded struct {
	Result     *probe.Result
	Window     history.Window
	Transition *history.Transition
}

var _ Recorder = (*Aggregator)(nil)

// Aggregator appends results to the history log, keeps the per-target known
// state in step with it, and detects up/down transitions. Records for the
// same target are serialized; different targets never block one another.
type Aggregator struct {
	log    *zap.Logger
	store  history.Store
	tx     postgres.Transactor
	window time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewAggregator(log *zap.Logger, store history.Store, tx postgres.Transactor, window time.Duration) *Aggregator {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Aggregator{
		log:    log,
		store:  store,
		tx:     tx,
		window: window,
		locks:  make(map[int64]*sync.Mutex),
	}
}

func (a *Aggregator) lockFor(targetID int64) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lk, ok := a.locks[targetID]
	if !ok {
		lk = &sync.Mutex{}
		a.locks[targetID] = lk
	}
	return lk
}

// Record appends the result and updates the target state in one transaction,
// then recomputes the rolling window from the raw log. A transition is
// reported when an up-or-unknown target fails or a down target succeeds;
// unknown going up updates state silently.
func (a *Aggregator) Record(ctx context.Context, res *probe.Result) (*Recorded, error) {
	lk := a.lockFor(res.TargetID)
	lk.Lock()
	defer lk.Unlock()

	prev, err := a.store.GetState(ctx, res.TargetID)
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	next := target.FromSuccess(res.Success)

	var tr *history.Transition
	switch {
	case !res.Success && prev != target.StatusDown:
		tr = &history.Transition{TargetID: res.TargetID, From: prev, To: target.StatusDown, At: res.Timestamp}
	case res.Success && prev == target.StatusDown:
		tr = &history.Transition{TargetID: res.TargetID, From: prev, To: target.StatusUp, At: res.Timestamp}
	}

	if err := a.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := a.store.Append(txCtx, res); err != nil {
			return fmt.Errorf("append result: %w", err)
		}
		if prev != next {
			if err := a.store.SetState(txCtx, res.TargetID, next); err != nil {
				return fmt.Errorf("set state: %w", err)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	results, err := a.store.QueryWindow(ctx, res.TargetID, res.Timestamp.Add(-a.window))
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}

	return &Recorded{Result: res, Window: history.Compute(results), Transition: tr}, nil
}

// WindowFor recomputes the rolling window for a target as of now, outside of
// any record. Used by on-demand reports.
func (a *Aggregator) WindowFor(ctx context.Context, targetID int64, at time.Time) (history.Window, error) {
	results, err := a.store.QueryWindow(ctx, targetID, at.Add(-a.window))
	if err != nil {
		return history.Window{}, fmt.Errorf("query window: %w", err)
	}
	return history.Compute(results), nil
}
