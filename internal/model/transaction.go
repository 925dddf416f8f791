package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the four transaction variants. Every consumer must
// switch exhaustively on it — adding a kind without updating a consumer is a
// compile-review error, not a silent fallthrough.
type Kind string

const (
	KindPurchase   Kind = "PURCHASE"
	KindSale       Kind = "SALE"
	KindPaymentIn  Kind = "PAYMENT_IN"
	KindPaymentOut Kind = "PAYMENT_OUT"
)

// PaymentMethod: TRANSFER transactions never touch the cash drawer — they are
// excluded from session balances and from the session expiry gate.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
)

// SyncStatus tracks whether the record has reached the remote system.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// TransactionItem is one line of a SALE or PURCHASE.
type TransactionItem struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Transaction is the tagged variant over {PURCHASE, SALE, PAYMENT_IN,
// PAYMENT_OUT}. PAYMENT_IN/PAYMENT_OUT carry no items and settle a partner
// balance; SALE/PURCHASE carry line items that must sum to TotalAmount.
type Transaction struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"type"`
	Items         []TransactionItem `json:"items,omitempty"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	ChangeAmount  decimal.Decimal   `json:"change_amount"`
	Method        PaymentMethod     `json:"payment_method"`
	PartnerID     string            `json:"partner_id,omitempty"`
	EmployeeID    string            `json:"employee_id,omitempty"`
	CashSessionID string            `json:"cash_session_id,omitempty"`
	Status        SyncStatus        `json:"sync_status"`
	CreatedAt     time.Time         `json:"created_at"`
}

var (
	ErrUnknownKind   = errors.New("unknown transaction kind")
	ErrUnknownMethod = errors.New("unknown payment method")
)

// Validate enforces the per-variant invariants:
// SALE/PURCHASE: total_amount == Σ items[].total.
// PAYMENT_IN/PAYMENT_OUT: no items, total_amount == paid_amount.
func (t *Transaction) Validate() error {
	switch t.Method {
	case MethodCash, MethodTransfer:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, t.Method)
	}

	switch t.Kind {
	case KindSale, KindPurchase:
		sum := decimal.Zero
		for _, it := range t.Items {
			sum = sum.Add(it.Total)
		}
		if !t.TotalAmount.Equal(sum) {
			return fmt.Errorf("%s total %s does not match item sum %s", t.Kind, t.TotalAmount, sum)
		}
		return nil
	case KindPaymentIn, KindPaymentOut:
		if len(t.Items) != 0 {
			return fmt.Errorf("%s must not carry items", t.Kind)
		}
		if !t.TotalAmount.Equal(t.PaidAmount) {
			return fmt.Errorf("%s total %s must equal paid %s", t.Kind, t.TotalAmount, t.PaidAmount)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
	}
}

// CashInflow reports whether the variant adds cash to the drawer.
// The caller must have already excluded TRANSFER records.
func (k Kind) CashInflow() (bool, error) {
	switch k {
	case KindSale, KindPaymentIn:
		return true, nil
	case KindPurchase, KindPaymentOut:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}
