package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// recordingTx satisfies pgx.Tx without a connection and notes every statement
// routed through it.
type recordingTx struct {
	stmts []string
}

func (t *recordingTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *recordingTx) Commit(context.Context) error          { return nil }
func (t *recordingTx) Rollback(context.Context) error        { return nil }
func (t *recordingTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *recordingTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *recordingTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *recordingTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *recordingTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.stmts = append(t.stmts, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}
func (t *recordingTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	t.stmts = append(t.stmts, sql)
	return emptyRows{}, nil
}
func (t *recordingTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	t.stmts = append(t.stmts, sql)
	return stateRow{}
}
func (t *recordingTx) Conn() *pgx.Conn { return nil }

type stateRow struct{}

func (stateRow) Scan(dest ...any) error {
	if p, ok := dest[0].(*target.Status); ok {
		*p = target.StatusUp
	}
	return nil
}

type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(...any) error                            { return nil }
func (emptyRows) Values() ([]any, error)                       { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }

func withInjectedTx(tx pgx.Tx) context.Context {
	return context.WithValue(context.Background(), txInjector{}, tx)
}

func TestExecQueryerPrefersInjectedTx(t *testing.T) {
	db := &DB{}
	tx := &recordingTx{}

	eq := db.execQueryer(withInjectedTx(tx))
	assert.Same(t, tx, eq)
}

func TestExecQueryerFallsBackToPool(t *testing.T) {
	db := &DB{Pool: &pgxpool.Pool{}}

	eq := db.execQueryer(context.Background())
	assert.Same(t, db.Pool, eq)
}

func TestHistoryRepoJoinsInjectedTx(t *testing.T) {
	tx := &recordingTx{}
	// nil pool: any statement escaping the transaction would crash
	repo := NewHistoryRepo(&DB{})
	ctx := withInjectedTx(tx)

	code := 200
	require.NoError(t, repo.Append(ctx, &probe.Result{
		TargetID: 1, Timestamp: time.Now().UTC(), Success: true, Code: &code, Outcome: probe.OutcomeSuccess,
	}))

	st, err := repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, target.StatusUp, st)

	require.NoError(t, repo.SetState(ctx, 1, target.StatusDown))

	res, err := repo.QueryWindow(ctx, 1, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, res)

	assert.Len(t, tx.stmts, 4, "every history statement joins the injected transaction")
}
