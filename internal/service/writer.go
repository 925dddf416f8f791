// Package service implements the entity write path: validate, write-ahead
// enqueue to the outbox, then the durable local put. The outbox record is
// written first so a crash between the two steps leaves a replayable
// mutation instead of a lost one; the remote payload is a full snapshot, so
// replay is idempotent.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quillgit/trader-pos-sub000/internal/ledger"
	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/outbox"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

// Entity type tags used on the wire.
const (
	TypeProduct          = "product"
	TypePartner          = "partner"
	TypeEmployee         = "employee"
	TypeExpenseCategory  = "expense_category"
	TypePayrollComponent = "payroll_component"
	TypePayrollLine      = "payroll_line"
	TypeTransaction      = "transaction"
	TypeExpense          = "expense"
	TypeAttendance       = "attendance"
	TypeAdjustment       = "hr_adjustment"
)

// Writer is the single mutation entry point for UI-issued writes.
type Writer struct {
	st       store.Store
	queue    *outbox.Queue
	sessions *ledger.Service
	clock    func() time.Time
}

type Option func(*Writer)

func WithClock(clock func() time.Time) Option {
	return func(w *Writer) { w.clock = clock }
}

func New(st store.Store, queue *outbox.Queue, sessions *ledger.Service, opts ...Option) *Writer {
	w := &Writer{st: st, queue: queue, sessions: sessions, clock: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RecordTransaction validates and durably records a transaction. CASH
// transactions linked to a session pass the expiry gate; TRANSFER
// transactions are exempt from both the gate and the session balance.
func (w *Writer) RecordTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = w.clock()
	}
	tx.Status = model.SyncPending

	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("transaction invalid: %w", err)
	}
	col, err := store.CollectionForKind(tx.Kind)
	if err != nil {
		return nil, err
	}
	if tx.CashSessionID != "" && tx.Method == model.MethodCash {
		if _, err := w.sessions.GateCashWrite(ctx, tx.CashSessionID); err != nil {
			return nil, err
		}
	}

	if _, err := w.queue.Enqueue(ctx, TypeTransaction, model.ActionCreate, tx); err != nil {
		return nil, fmt.Errorf("enqueue transaction: %w", err)
	}
	if err := store.PutAs(ctx, w.st, col, tx.ID, tx); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	if tx.CashSessionID != "" {
		if err := w.sessions.BumpCounters(ctx, tx.CashSessionID, 1, 0); err != nil {
			// Counter drift is audit-only; the balance is recomputed from
			// source records, so log and carry on.
			log.Warn().Err(err).Str("session_id", tx.CashSessionID).Msg("service: counter bump failed")
		}
	}
	return tx, nil
}

// RecordExpense records an expense, gated against the linked session.
func (w *Writer) RecordExpense(ctx context.Context, exp *model.Expense) (*model.Expense, error) {
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = w.clock()
	}
	exp.Status = model.SyncPending

	if exp.Amount.IsNegative() {
		return nil, errors.New("expense amount must not be negative")
	}
	if exp.Category == "" {
		return nil, errors.New("expense requires a category")
	}
	if exp.CashSessionID != "" {
		if _, err := w.sessions.GateCashWrite(ctx, exp.CashSessionID); err != nil {
			return nil, err
		}
	}

	if _, err := w.queue.Enqueue(ctx, TypeExpense, model.ActionCreate, exp); err != nil {
		return nil, fmt.Errorf("enqueue expense: %w", err)
	}
	if err := store.PutAs(ctx, w.st, store.ColExpenses, exp.ID, exp); err != nil {
		return nil, fmt.Errorf("persist expense: %w", err)
	}

	if exp.CashSessionID != "" {
		if err := w.sessions.BumpCounters(ctx, exp.CashSessionID, 0, 1); err != nil {
			log.Warn().Err(err).Str("session_id", exp.CashSessionID).Msg("service: counter bump failed")
		}
	}
	return exp, nil
}

// RecordAttendance appends a check event. Attendance is append-only input to
// the payroll read-model.
func (w *Writer) RecordAttendance(ctx context.Context, ev *model.Attendance) (*model.Attendance, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = w.clock()
	}
	ev.Status = model.SyncPending

	if ev.EmployeeID == "" {
		return nil, errors.New("attendance requires an employee")
	}
	switch ev.Type {
	case model.CheckIn, model.CheckOut:
	default:
		return nil, fmt.Errorf("unknown attendance type %q", ev.Type)
	}

	if _, err := w.queue.Enqueue(ctx, TypeAttendance, model.ActionCreate, ev); err != nil {
		return nil, fmt.Errorf("enqueue attendance: %w", err)
	}
	if err := store.PutAs(ctx, w.st, store.ColAttendance, ev.ID, ev); err != nil {
		return nil, fmt.Errorf("persist attendance: %w", err)
	}
	return ev, nil
}

// RecordAdjustment records a one-off payroll adjustment.
func (w *Writer) RecordAdjustment(ctx context.Context, adj *model.Adjustment) (*model.Adjustment, error) {
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	if adj.Date.IsZero() {
		adj.Date = w.clock()
	}
	adj.Status = model.SyncPending
	if adj.EmployeeID == "" {
		return nil, errors.New("adjustment requires an employee")
	}

	if _, err := w.queue.Enqueue(ctx, TypeAdjustment, model.ActionCreate, adj); err != nil {
		return nil, fmt.Errorf("enqueue adjustment: %w", err)
	}
	if err := store.PutAs(ctx, w.st, store.ColAdjustments, adj.ID, adj); err != nil {
		return nil, fmt.Errorf("persist adjustment: %w", err)
	}
	return adj, nil
}

// Master data writes. The action tag is "create" for a new key and "update"
// for an existing one, matching the remote contract.

func (w *Writer) SaveProduct(ctx context.Context, p *model.Product) error {
	p.UpdatedAt = w.clock()
	return w.saveMaster(ctx, TypeProduct, store.ColProducts, p.ID, p)
}

func (w *Writer) SavePartner(ctx context.Context, p *model.Partner) error {
	p.UpdatedAt = w.clock()
	return w.saveMaster(ctx, TypePartner, store.ColPartners, p.ID, p)
}

func (w *Writer) SaveEmployee(ctx context.Context, e *model.Employee) error {
	e.UpdatedAt = w.clock()
	return w.saveMaster(ctx, TypeEmployee, store.ColEmployees, e.ID, e)
}

func (w *Writer) SaveExpenseCategory(ctx context.Context, c *model.ExpenseCategory) error {
	c.UpdatedAt = w.clock()
	return w.saveMaster(ctx, TypeExpenseCategory, store.ColExpenseCategories, c.ID, c)
}

func (w *Writer) SavePayrollComponent(ctx context.Context, c *model.PayrollComponent) error {
	c.UpdatedAt = w.clock()
	return w.saveMaster(ctx, TypePayrollComponent, store.ColPayrollComponents, c.ID, c)
}

func (w *Writer) SavePayrollLine(ctx context.Context, l *model.PayrollLine) error {
	l.UpdatedAt = w.clock()
	return w.saveMaster(ctx, TypePayrollLine, store.ColPayrollLines, l.ID, l)
}

// DeleteMaster removes a master record locally and propagates the delete.
func (w *Writer) DeleteMaster(ctx context.Context, entityType, collection, id string) error {
	if _, err := store.GetAs[map[string]any](ctx, w.st, collection, id); err != nil {
		return err
	}
	payload := map[string]string{"id": id}
	if _, err := w.queue.Enqueue(ctx, entityType, model.ActionDelete, payload); err != nil {
		return fmt.Errorf("enqueue delete: %w", err)
	}
	return w.st.Delete(ctx, collection, id)
}

func (w *Writer) saveMaster(ctx context.Context, entityType, collection, id string, v any) error {
	if id == "" {
		return fmt.Errorf("%s requires an id", entityType)
	}
	action := model.ActionCreate
	if _, err := w.st.Get(ctx, collection, id); err == nil {
		action = model.ActionUpdate
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if _, err := w.queue.Enqueue(ctx, entityType, action, v); err != nil {
		return fmt.Errorf("enqueue %s: %w", entityType, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entityType, err)
	}
	return w.st.Put(ctx, collection, id, raw)
}
