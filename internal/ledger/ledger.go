// Package ledger owns the cash-session lifecycle and its balance read-model.
// The balance is never kept as a running counter: records can arrive out of
// order through sync, so it is recomputed from source records on every call.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/outbox"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

const metaActiveSession = "active_session"

var (
	ErrSessionAlreadyOpen = errors.New("a cash session is already open")
	ErrSessionNotFound    = errors.New("cash session not found")
	ErrSessionClosed      = errors.New("cash session is closed")
	ErrSessionExpired     = errors.New("cash session has expired")
)

// activePointer is the single meta slot referencing the OPEN session. It
// replaces a full collection scan on every write and makes the single-open
// invariant enforceable at open time.
type activePointer struct {
	SessionID string `json:"session_id"`
}

// Service manages sessions and computes balances. Session mutations go
// through the outbox like every other entity write.
type Service struct {
	st    store.Store
	queue *outbox.Queue
	clock func() time.Time
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(st store.Store, queue *outbox.Queue, opts ...Option) *Service {
	s := &Service{st: st, queue: queue, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a new OPEN session. It fails while another session is OPEN.
func (s *Service) Open(ctx context.Context, startAmount decimal.Decimal) (*model.CashSession, error) {
	if cur, err := s.Active(ctx); err != nil {
		return nil, err
	} else if cur != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyOpen, cur.ID)
	}

	sess := &model.CashSession{
		ID:          uuid.NewString(),
		State:       model.SessionOpen,
		StartAmount: startAmount,
		OpenedAt:    s.clock(),
	}
	if _, err := s.queue.Enqueue(ctx, "cash_session", model.ActionCreate, sess); err != nil {
		return nil, fmt.Errorf("ledger: enqueue session: %w", err)
	}
	if err := store.PutAs(ctx, s.st, store.ColSessions, sess.ID, sess); err != nil {
		return nil, fmt.Errorf("ledger: persist session: %w", err)
	}
	ptr := activePointer{SessionID: sess.ID}
	if err := store.PutAs(ctx, s.st, store.ColMeta, metaActiveSession, &ptr); err != nil {
		return nil, fmt.Errorf("ledger: set active pointer: %w", err)
	}

	log.Info().Str("session_id", sess.ID).Str("start_amount", startAmount.String()).Msg("ledger: session opened")
	return sess, nil
}

// Close transitions OPEN → CLOSED, records the counted end amount and clears
// the active pointer. Closing the only OPEN session leaves zero OPEN
// sessions; a CLOSED session cannot be closed again.
func (s *Service) Close(ctx context.Context, id string, endAmount decimal.Decimal) (*model.CashSession, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != model.SessionOpen {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}

	now := s.clock()
	sess.State = model.SessionClosed
	sess.EndAmount = &endAmount
	sess.ClosedAt = &now

	if _, err := s.queue.Enqueue(ctx, "cash_session", model.ActionUpdate, sess); err != nil {
		return nil, fmt.Errorf("ledger: enqueue session close: %w", err)
	}
	if err := store.PutAs(ctx, s.st, store.ColSessions, sess.ID, sess); err != nil {
		return nil, fmt.Errorf("ledger: persist session close: %w", err)
	}
	if err := s.clearPointerIf(ctx, id); err != nil {
		return nil, err
	}

	log.Info().Str("session_id", id).Msg("ledger: session closed")
	return sess, nil
}

// Get loads a session or fails explicitly; missing sessions never degrade to
// a silent zero balance.
func (s *Service) Get(ctx context.Context, id string) (*model.CashSession, error) {
	sess, err := store.GetAs[model.CashSession](ctx, s.st, store.ColSessions, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Active resolves the current OPEN session through the pointer slot. A
// missing or dangling pointer (crash between session write and pointer
// write, or a pull that closed the session) is rebuilt from source records.
func (s *Service) Active(ctx context.Context) (*model.CashSession, error) {
	ptr, err := store.GetAs[activePointer](ctx, s.st, store.ColMeta, metaActiveSession)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err == nil && ptr.SessionID != "" {
		sess, gerr := store.GetAs[model.CashSession](ctx, s.st, store.ColSessions, ptr.SessionID)
		if gerr == nil && sess.State == model.SessionOpen {
			return sess, nil
		}
		if gerr != nil && !errors.Is(gerr, store.ErrNotFound) {
			return nil, gerr
		}
		log.Warn().Str("session_id", ptr.SessionID).Msg("ledger: active pointer inconsistent, rebuilding")
	}
	return s.rebuildPointer(ctx)
}

func (s *Service) rebuildPointer(ctx context.Context) (*model.CashSession, error) {
	sessions, err := store.ScanAs[model.CashSession](ctx, s.st, store.ColSessions)
	if err != nil {
		return nil, err
	}
	var open *model.CashSession
	for i := range sessions {
		if sessions[i].State != model.SessionOpen {
			continue
		}
		// More than one OPEN session means a corrupted store (e.g. a merge
		// from another device). Keep the most recently opened one as active.
		if open == nil || sessions[i].OpenedAt.After(open.OpenedAt) {
			open = &sessions[i]
		}
	}
	if open == nil {
		if err := s.st.Delete(ctx, store.ColMeta, metaActiveSession); err != nil {
			return nil, err
		}
		return nil, nil
	}
	ptr := activePointer{SessionID: open.ID}
	if err := store.PutAs(ctx, s.st, store.ColMeta, metaActiveSession, &ptr); err != nil {
		return nil, err
	}
	return open, nil
}

func (s *Service) clearPointerIf(ctx context.Context, id string) error {
	ptr, err := store.GetAs[activePointer](ctx, s.st, store.ColMeta, metaActiveSession)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ptr.SessionID != id {
		return nil
	}
	return s.st.Delete(ctx, store.ColMeta, metaActiveSession)
}

// GateCashWrite rejects cash-affecting writes against a missing, closed or
// expired session. TRANSFER-method records must not be routed through this
// gate.
func (s *Service) GateCashWrite(ctx context.Context, sessionID string) (*model.CashSession, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != model.SessionOpen {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	if sess.ExpiredAt(s.clock()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}
	return sess, nil
}

// Balance recomputes the session balance from source records:
//
//	start + Σ cash SALE/PAYMENT_IN paid − Σ cash PURCHASE/PAYMENT_OUT paid − Σ expenses
//
// TRANSFER-method transactions have no effect. Repeated calls over the same
// record set yield the same value.
func (s *Service) Balance(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := sess.StartAmount
	for _, col := range []string{store.ColSales, store.ColPurchases} {
		txs, err := store.ScanAs[model.Transaction](ctx, s.st, col)
		if err != nil {
			return decimal.Zero, err
		}
		for i := range txs {
			tx := &txs[i]
			if tx.CashSessionID != sessionID || tx.Method != model.MethodCash {
				continue
			}
			inflow, err := tx.Kind.CashInflow()
			if err != nil {
				return decimal.Zero, err
			}
			if inflow {
				balance = balance.Add(tx.PaidAmount)
			} else {
				balance = balance.Sub(tx.PaidAmount)
			}
		}
	}

	expenses, err := store.ScanAs[model.Expense](ctx, s.st, store.ColExpenses)
	if err != nil {
		return decimal.Zero, err
	}
	for i := range expenses {
		if expenses[i].CashSessionID == sessionID {
			balance = balance.Sub(expenses[i].Amount)
		}
	}
	return balance, nil
}

// BumpCounters increments the audit counters on a session. Counters are the
// one field a CLOSED session may still change.
func (s *Service) BumpCounters(ctx context.Context, sessionID string, transactions, expenses int) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.TransactionCount += transactions
	sess.ExpenseCount += expenses
	return store.PutAs(ctx, s.st, store.ColSessions, sess.ID, sess)
}
