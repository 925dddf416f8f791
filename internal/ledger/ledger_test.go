package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/outbox"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

type okSender struct{}

func (okSender) Send(context.Context, *model.QueueItem) error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newService(t *testing.T) (*Service, *fakeClock, store.Store) {
	t.Helper()
	st := store.NewMemory()
	queue := outbox.New(st, okSender{})
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)}
	return New(st, queue, WithClock(clock.Now)), clock, st
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func putTx(t *testing.T, st store.Store, tx *model.Transaction) {
	t.Helper()
	col, err := store.CollectionForKind(tx.Kind)
	require.NoError(t, err)
	require.NoError(t, store.PutAs(context.Background(), st, col, tx.ID, tx))
}

func TestOpenEnforcesSingleOpenSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	first, err := svc.Open(ctx, d(100000))
	require.NoError(t, err)

	_, err = svc.Open(ctx, d(50000))
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)

	// Closing the only open session leaves zero open sessions.
	_, err = svc.Close(ctx, first.ID, d(125000))
	require.NoError(t, err)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	// And a new session can open again.
	_, err = svc.Open(ctx, d(20000))
	assert.NoError(t, err)
}

func TestCloseIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	sess, err := svc.Open(ctx, d(1000))
	require.NoError(t, err)
	_, err = svc.Close(ctx, sess.ID, d(900))
	require.NoError(t, err)

	_, err = svc.Close(ctx, sess.ID, d(800))
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = svc.Close(ctx, "nope", d(0))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActiveRebuildsDanglingPointer(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newService(t)

	sess, err := svc.Open(ctx, d(1000))
	require.NoError(t, err)

	// Simulate a crash that lost the pointer slot.
	require.NoError(t, st.Delete(ctx, store.ColMeta, "active_session"))

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
}

func TestBalanceScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newService(t)

	sess, err := svc.Open(ctx, d(100000))
	require.NoError(t, err)

	putTx(t, st, &model.Transaction{
		ID: "t1", Kind: model.KindSale, Method: model.MethodCash,
		PaidAmount: d(50000), CashSessionID: sess.ID,
	})
	putTx(t, st, &model.Transaction{
		ID: "t2", Kind: model.KindPurchase, Method: model.MethodCash,
		PaidAmount: d(20000), CashSessionID: sess.ID,
	})
	require.NoError(t, store.PutAs(ctx, st, store.ColExpenses, "e1", &model.Expense{
		ID: "e1", Amount: d(5000), Category: "transport", CashSessionID: sess.ID,
	}))

	balance, err := svc.Balance(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d(125000)), "got %s", balance)

	// Recomputing from the same record set yields the same value.
	again, err := svc.Balance(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(again))
}

func TestBalanceIgnoresTransferAndOtherSessions(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newService(t)

	sess, err := svc.Open(ctx, d(1000))
	require.NoError(t, err)

	putTx(t, st, &model.Transaction{
		ID: "t1", Kind: model.KindSale, Method: model.MethodTransfer,
		PaidAmount: d(999), CashSessionID: sess.ID,
	})
	putTx(t, st, &model.Transaction{
		ID: "t2", Kind: model.KindPaymentOut, Method: model.MethodCash,
		PaidAmount: d(300), CashSessionID: "some-other-session",
	})
	putTx(t, st, &model.Transaction{
		ID: "t3", Kind: model.KindPaymentIn, Method: model.MethodCash,
		PaidAmount: d(250), CashSessionID: sess.ID,
	})

	balance, err := svc.Balance(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d(1250)), "got %s", balance)
}

func TestBalanceMissingSessionIsExplicit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGateCashWriteRejectsExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newService(t)

	sess, err := svc.Open(ctx, d(1000))
	require.NoError(t, err)

	_, err = svc.GateCashWrite(ctx, sess.ID)
	assert.NoError(t, err)

	// Left open past the day boundary.
	clock.Set(clock.Now().Add(24 * time.Hour))
	_, err = svc.GateCashWrite(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestGateCashWriteRejectsClosedSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	sess, err := svc.Open(ctx, d(1000))
	require.NoError(t, err)
	_, err = svc.Close(ctx, sess.ID, d(1000))
	require.NoError(t, err)

	_, err = svc.GateCashWrite(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestBumpCounters(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	sess, err := svc.Open(ctx, d(0))
	require.NoError(t, err)

	require.NoError(t, svc.BumpCounters(ctx, sess.ID, 1, 0))
	require.NoError(t, svc.BumpCounters(ctx, sess.ID, 1, 2))

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TransactionCount)
	assert.Equal(t, 2, got.ExpenseCount)
}
