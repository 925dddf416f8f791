package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComponentKind: allowances add to net pay, deductions subtract.
type ComponentKind string

const (
	Allowance ComponentKind = "ALLOWANCE"
	Deduction ComponentKind = "DEDUCTION"
)

// CalcMethod selects how a component's amount is produced.
type CalcMethod string

const (
	CalcFixed       CalcMethod = "FIXED"
	CalcTransaction CalcMethod = "TRANSACTION"
	CalcAttendance  CalcMethod = "ATTENDANCE"
)

// SourceKey names a transaction resolver from the closed registry in the
// payroll package. It replaces free-form source tags so a typo fails loudly
// instead of resolving to zero.
type SourceKey string

const (
	SourceSalesTotal       SourceKey = "SALES_TOTAL"
	SourcePurchasesTotal   SourceKey = "PURCHASES_TOTAL"
	SourceExpensesCategory SourceKey = "EXPENSES_CATEGORY"
)

// SourceRef points a TRANSACTION component at a resolver. Category is only
// meaningful for SourceExpensesCategory.
type SourceRef struct {
	Key      SourceKey `json:"key"`
	Category string    `json:"category,omitempty"`
}

// PayrollComponent is a reusable pay element from master data.
// Rate, when set, is applied to the resolver output of a TRANSACTION
// component (e.g. 0.02 commission on the employee's sales total).
type PayrollComponent struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Kind      ComponentKind    `json:"kind"`
	Method    CalcMethod       `json:"method"`
	Amount    decimal.Decimal  `json:"amount"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	Source    *SourceRef       `json:"source,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PayrollLine assigns a component to an employee, optionally overriding the
// component's fixed amount for that employee.
type PayrollLine struct {
	ID          string           `json:"id"`
	EmployeeID  string           `json:"employee_id"`
	ComponentID string           `json:"component_id"`
	Override    *decimal.Decimal `json:"override_amount,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Adjustment is a one-off signed correction applied to an employee's net pay
// in the period containing its date.
type Adjustment struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	Date       time.Time       `json:"date"`
	Status     SyncStatus      `json:"sync_status"`
}
