package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an outgoing cost, optionally charged against the cash session
// that was active when it was recorded.
type Expense struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	CashSessionID string          `json:"cash_session_id,omitempty"`
	Status        SyncStatus      `json:"sync_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AttendanceType: "CHECK_IN" | "CHECK_OUT"
type AttendanceType string

const (
	CheckIn  AttendanceType = "CHECK_IN"
	CheckOut AttendanceType = "CHECK_OUT"
)

// Attendance events are append-only; they are never mutated after creation
// and feed only the payroll read-model.
type Attendance struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employee_id"`
	Type       AttendanceType `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Status     SyncStatus     `json:"sync_status"`
}
