package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/history"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/owner"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
	"github.com/Vaarun-C/UptimeMonitor/internal/services/engine"
)

type stubSource struct {
	targets []*target.Target
}

func (s *stubSource) GetByID(_ context.Context, id int64) (*target.Target, error) {
	for _, t := range s.targets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, errors.New("target not found")
}

func (s *stubSource) ListAll(_ context.Context) ([]*target.Target, error) {
	return s.targets, nil
}

func (s *stubSource) ListByOwner(_ context.Context, ownerID int64) ([]*target.Target, error) {
	var out []*target.Target
	for _, t := range s.targets {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubOwners struct {
	owners map[int64]*owner.Owner
}

func (s *stubOwners) GetByID(_ context.Context, id int64) (*owner.Owner, error) {
	if o, ok := s.owners[id]; ok {
		return o, nil
	}
	return nil, errors.New("owner not found")
}

func (s *stubOwners) ListWithTargets(_ context.Context) ([]*owner.Owner, error) {
	var out []*owner.Owner
	for _, o := range s.owners {
		out = append(out, o)
	}
	return out, nil
}

type stubHistory struct {
	results map[int64][]*probe.Result
}

func (s *stubHistory) Append(_ context.Context, r *probe.Result) error {
	s.results[r.TargetID] = append(s.results[r.TargetID], r)
	return nil
}

func (s *stubHistory) QueryWindow(_ context.Context, targetID int64, since time.Time) ([]*probe.Result, error) {
	var out []*probe.Result
	for _, r := range s.results[targetID] {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubHistory) GetState(_ context.Context, _ int64) (target.Status, error) {
	return target.StatusUnknown, nil
}

func (s *stubHistory) SetState(_ context.Context, _ int64, _ target.Status) error {
	return nil
}

type sentMail struct {
	to, subject, body string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func okAt(targetID int64, latency int64, at time.Time) *probe.Result {
	code := 200
	return &probe.Result{
		TargetID: targetID, Timestamp: at, Success: true,
		Code: &code, LatencyMS: latency, Outcome: probe.OutcomeSuccess,
	}
}

func failAt(targetID int64, at time.Time) *probe.Result {
	return &probe.Result{TargetID: targetID, Timestamp: at, Outcome: probe.OutcomeTimeout}
}

func testDispatch(src *stubSource, owners *stubOwners, store *stubHistory, out *recordingSender, now time.Time) *Dispatch {
	return NewDispatch(zap.NewNop(), src, owners, store, out, fixedClock{at: now}, 24*time.Hour)
}

func TestStateChangedMailsTheOwner(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 10, URL: "https://example.com", Category: "blog"}}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	out := &recordingSender{}
	d := testDispatch(src, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	pct := 66.67
	rec := &engine.Recorded{
		Result:     failAt(1, now),
		Window:     history.Window{Total: 3, Successful: 2, Percentage: &pct, LastState: target.StatusDown},
		Transition: &history.Transition{TargetID: 1, From: target.StatusUp, To: target.StatusDown, At: now},
	}
	d.StateChanged(context.Background(), src.targets[0], rec)

	require.Equal(t, 1, out.count())
	m := out.sent[0]
	assert.Equal(t, "ada@example.com", m.to)
	assert.Equal(t, "Site down: https://example.com", m.subject)
	assert.Contains(t, m.body, "ada")
	assert.Contains(t, m.body, "https://example.com is now down")
	assert.Contains(t, m.body, "66.67%")
}

func TestStateChangedSwallowsDeliveryFailures(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 10, URL: "https://example.com"}}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	out := &recordingSender{err: errors.New("smtp connection refused")}
	d := testDispatch(src, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	rec := &engine.Recorded{
		Result:     failAt(1, now),
		Transition: &history.Transition{TargetID: 1, From: target.StatusUp, To: target.StatusDown, At: now},
	}

	// a broken sender must never panic, block, or error out of the pipeline
	for i := 0; i < 100; i++ {
		d.StateChanged(context.Background(), src.targets[0], rec)
	}
	assert.Equal(t, 0, out.count())
}

func TestStateChangedUnknownOwnerIsSwallowed(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 99, URL: "https://example.com"}}}
	out := &recordingSender{}
	d := testDispatch(src, &stubOwners{owners: map[int64]*owner.Owner{}}, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	rec := &engine.Recorded{
		Result:     failAt(1, now),
		Transition: &history.Transition{TargetID: 1, From: target.StatusUp, To: target.StatusDown, At: now},
	}
	d.StateChanged(context.Background(), src.targets[0], rec)
	assert.Equal(t, 0, out.count())
}

func TestOwnerReportDigest(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{
		{ID: 1, OwnerID: 10, URL: "https://one.example.com", Category: "blog"},
		{ID: 2, OwnerID: 10, URL: "https://two.example.com"},
	}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	store := &stubHistory{results: map[int64][]*probe.Result{
		1: {okAt(1, 120, now.Add(-time.Hour)), okAt(1, 90, now.Add(-time.Minute))},
		2: {okAt(2, 200, now.Add(-time.Hour)), failAt(2, now.Add(-time.Minute))},
	}}
	out := &recordingSender{}
	d := testDispatch(src, owners, store, out, now)

	require.NoError(t, d.OwnerReport(context.Background(), 10))
	require.Equal(t, 1, out.count())

	m := out.sent[0]
	assert.Equal(t, "1 site(s) need attention - Uptime Report", m.subject)
	assert.Contains(t, m.body, "https://one.example.com: up, uptime 100.00%")
	assert.Contains(t, m.body, "https://two.example.com: down, uptime 50.00%")
	assert.Contains(t, m.body, "(blog)")
	assert.Contains(t, m.body, "(uncategorized)")
	assert.Contains(t, m.body, "Monitored sites: 2, needing attention: 1")
}

func TestOwnerReportAllOperational(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 10, URL: "https://one.example.com"}}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	store := &stubHistory{results: map[int64][]*probe.Result{
		1: {okAt(1, 50, now.Add(-time.Minute))},
	}}
	out := &recordingSender{}
	d := testDispatch(src, owners, store, out, now)

	require.NoError(t, d.OwnerReport(context.Background(), 10))
	require.Equal(t, 1, out.count())
	assert.Equal(t, "All systems operational - Uptime Report", out.sent[0].subject)
}

func TestOwnerReportNeverCheckedTarget(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 10, URL: "https://new.example.com"}}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	out := &recordingSender{}
	d := testDispatch(src, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	require.NoError(t, d.OwnerReport(context.Background(), 10))
	require.Equal(t, 1, out.count())
	assert.Contains(t, out.sent[0].body, "uptime n/a", "no checks yet must render as n/a, not a number")
	assert.True(t, strings.HasPrefix(out.sent[0].subject, "All systems operational"))
}

func TestOwnerReportNoTargets(t *testing.T) {
	now := time.Now().UTC()
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	out := &recordingSender{}
	d := testDispatch(&stubSource{}, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	require.NoError(t, d.OwnerReport(context.Background(), 10))
	assert.Equal(t, 0, out.count())
}

func TestOwnerReportDeliveryFailureIsSwallowed(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 10, URL: "https://one.example.com"}}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	out := &recordingSender{err: errors.New("smtp timeout")}
	d := testDispatch(src, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	assert.NoError(t, d.OwnerReport(context.Background(), 10))
}

func TestRunBroadcastsOnCadence(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{{ID: 1, OwnerID: 10, URL: "https://one.example.com"}}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{10: {ID: 10, Username: "ada", Email: "ada@example.com"}}}
	out := &recordingSender{}
	d := testDispatch(src, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return out.count() >= 2 }, 2*time.Second, 5*time.Millisecond,
		"digests must keep going out on every tick")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBroadcastReports(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{targets: []*target.Target{
		{ID: 1, OwnerID: 10, URL: "https://one.example.com"},
		{ID: 2, OwnerID: 20, URL: "https://two.example.com"},
	}}
	owners := &stubOwners{owners: map[int64]*owner.Owner{
		10: {ID: 10, Username: "ada", Email: "ada@example.com"},
		20: {ID: 20, Username: "bob", Email: "bob@example.com"},
	}}
	out := &recordingSender{}
	d := testDispatch(src, owners, &stubHistory{results: map[int64][]*probe.Result{}}, out, now)

	require.NoError(t, d.BroadcastReports(context.Background()))
	assert.Equal(t, 2, out.count())
}
