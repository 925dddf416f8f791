package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable/purchasable item from the master catalog.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         decimal.Decimal `json:"stock"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Partner is a customer or supplier account.
type Partner struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BaseMethod selects how an employee's base pay is derived.
type BaseMethod string

const (
	BasePerDay  BaseMethod = "PER_DAY"
	BaseMonthly BaseMethod = "MONTHLY"
)

type Employee struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	BaseSalary decimal.Decimal `json:"base_salary"`
	BaseMethod BaseMethod      `json:"base_method"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ExpenseCategory is a closed enumeration maintained as master data.
type ExpenseCategory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}
