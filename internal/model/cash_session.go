package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState: "OPEN" | "CLOSED"
type SessionState string

const (
	SessionOpen   SessionState = "OPEN"
	SessionClosed SessionState = "CLOSED"
)

// CashSession is the lifecycle record for one cash drawer shift.
// At most one session is OPEN at a time; that invariant is enforced at write
// time through the active-session pointer, not assumed.
// Once CLOSED the record is immutable except for the audit counters.
type CashSession struct {
	ID          string           `json:"id"`
	State       SessionState     `json:"state"`
	StartAmount decimal.Decimal  `json:"start_amount"`
	EndAmount   *decimal.Decimal `json:"end_amount,omitempty"`
	// Audit counters for linked records; maintained by the write services.
	TransactionCount int        `json:"transaction_count"`
	ExpenseCount     int        `json:"expense_count"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

// ExpiredAt reports whether the session was left OPEN past the operational
// day boundary: local midnight of the day it was opened. The boundary rule is
// a domain policy; callers inject now so it stays testable.
func (s *CashSession) ExpiredAt(now time.Time) bool {
	if s.State != SessionOpen {
		return false
	}
	oy, om, od := s.OpenedAt.Local().Date()
	ny, nm, nd := now.Local().Date()
	opened := time.Date(oy, om, od, 0, 0, 0, 0, time.Local)
	current := time.Date(ny, nm, nd, 0, 0, 0, 0, time.Local)
	return current.After(opened)
}
