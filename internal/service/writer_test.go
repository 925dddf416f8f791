package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillgit/trader-pos-sub000/internal/ledger"
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

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newWriter(t *testing.T) (*Writer, *ledger.Service, *outbox.Queue, *fakeClock, store.Store) {
	t.Helper()
	st := store.NewMemory()
	queue := outbox.New(st, okSender{})
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)}
	sessions := ledger.New(st, queue, ledger.WithClock(clock.Now))
	w := New(st, queue, sessions, WithClock(clock.Now))
	return w, sessions, queue, clock, st
}

func TestRecordTransactionWritesAheadToOutbox(t *testing.T) {
	ctx := context.Background()
	w, _, queue, _, st := newWriter(t)

	tx, err := w.RecordTransaction(ctx, &model.Transaction{
		Kind:        model.KindPaymentIn,
		Method:      model.MethodTransfer,
		TotalAmount: d(5000),
		PaidAmount:  d(5000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, model.SyncPending, tx.Status)

	// Entity persisted in the payments/sales collection.
	got, err := store.GetAs[model.Transaction](ctx, st, store.ColSales, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindPaymentIn, got.Kind)

	// And the matching outbox record exists.
	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TypeTransaction, pending[0].EntityType)
	assert.Equal(t, tx.ID, pending[0].PayloadID())
}

func TestRecordTransactionRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	w, _, queue, _, _ := newWriter(t)

	_, err := w.RecordTransaction(ctx, &model.Transaction{
		Kind:        model.KindSale,
		Method:      model.MethodCash,
		Items:       []model.TransactionItem{{ProductID: "p1", Total: d(100)}},
		TotalAmount: d(999),
	})
	require.Error(t, err)

	// Nothing reached the outbox.
	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordTransactionGatesExpiredSession(t *testing.T) {
	ctx := context.Background()
	w, sessions, _, clock, _ := newWriter(t)

	sess, err := sessions.Open(ctx, d(100000))
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)

	_, err = w.RecordTransaction(ctx, &model.Transaction{
		Kind:          model.KindSale,
		Method:        model.MethodCash,
		Items:         []model.TransactionItem{{ProductID: "p1", Total: d(100)}},
		TotalAmount:   d(100),
		PaidAmount:    d(100),
		CashSessionID: sess.ID,
	})
	assert.ErrorIs(t, err, ledger.ErrSessionExpired)

	// TRANSFER transactions are exempt from the expiry gate.
	_, err = w.RecordTransaction(ctx, &model.Transaction{
		Kind:          model.KindSale,
		Method:        model.MethodTransfer,
		Items:         []model.TransactionItem{{ProductID: "p1", Total: d(100)}},
		TotalAmount:   d(100),
		PaidAmount:    d(100),
		CashSessionID: sess.ID,
	})
	assert.NoError(t, err)
}

func TestRecordTransactionBumpsSessionCounter(t *testing.T) {
	ctx := context.Background()
	w, sessions, _, _, _ := newWriter(t)

	sess, err := sessions.Open(ctx, d(0))
	require.NoError(t, err)

	_, err = w.RecordTransaction(ctx, &model.Transaction{
		Kind:          model.KindSale,
		Method:        model.MethodCash,
		Items:         []model.TransactionItem{{ProductID: "p1", Total: d(100)}},
		TotalAmount:   d(100),
		PaidAmount:    d(100),
		CashSessionID: sess.ID,
	})
	require.NoError(t, err)

	got, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TransactionCount)
}

func TestRecordExpenseGatedAndCounted(t *testing.T) {
	ctx := context.Background()
	w, sessions, _, _, _ := newWriter(t)

	sess, err := sessions.Open(ctx, d(0))
	require.NoError(t, err)

	_, err = w.RecordExpense(ctx, &model.Expense{
		Amount:        d(2500),
		Category:      "transport",
		CashSessionID: sess.ID,
	})
	require.NoError(t, err)

	got, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExpenseCount)

	_, err = w.RecordExpense(ctx, &model.Expense{Amount: d(100)})
	assert.Error(t, err, "category is required")

	_, err = w.RecordExpense(ctx, &model.Expense{Amount: d(-5), Category: "misc"})
	assert.Error(t, err, "negative amounts are rejected")
}

func TestRecordAttendanceValidation(t *testing.T) {
	ctx := context.Background()
	w, _, queue, _, _ := newWriter(t)

	_, err := w.RecordAttendance(ctx, &model.Attendance{Type: model.CheckIn})
	assert.Error(t, err, "employee required")

	_, err = w.RecordAttendance(ctx, &model.Attendance{EmployeeID: "e1", Type: "NAP"})
	assert.Error(t, err, "unknown type")

	ev, err := w.RecordAttendance(ctx, &model.Attendance{EmployeeID: "e1", Type: model.CheckIn})
	require.NoError(t, err)
	assert.False(t, ev.Timestamp.IsZero())

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveMasterActionCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	w, _, queue, _, _ := newWriter(t)

	p := &model.Product{ID: "p1", Name: "rice", SalePrice: d(12000)}
	require.NoError(t, w.SaveProduct(ctx, p))
	p.Name = "rice 1kg"
	require.NoError(t, w.SaveProduct(ctx, p))

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ActionCreate, pending[0].Action)
	assert.Equal(t, model.ActionUpdate, pending[1].Action)
}

func TestDeleteMasterPropagates(t *testing.T) {
	ctx := context.Background()
	w, _, queue, _, st := newWriter(t)

	require.NoError(t, w.SaveProduct(ctx, &model.Product{ID: "p1", Name: "rice"}))
	require.NoError(t, w.DeleteMaster(ctx, TypeProduct, store.ColProducts, "p1"))

	_, err := st.Get(ctx, store.ColProducts, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ActionDelete, pending[1].Action)
	assert.Equal(t, "p1", pending[1].PayloadID())

	err = w.DeleteMaster(ctx, TypeProduct, store.ColProducts, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
