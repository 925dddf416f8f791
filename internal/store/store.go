// Package store implements the durable local store: named, independently
// keyed collections of JSON documents persisted on-device. Every operation
// is durable before it returns; there are no cross-collection transactions,
// so callers must tolerate partial failure between two collection writes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Logical collection names. Keys are entity ids.
const (
	ColProducts          = "masters.products"
	ColPartners          = "masters.partners"
	ColEmployees         = "masters.employees"
	ColExpenseCategories = "masters.expense_categories"
	ColPayrollComponents = "masters.payroll_components"
	ColPayrollLines      = "masters.payroll_lines"
	ColPurchases         = "transactions.purchases"
	ColSales             = "transactions.sales" // also holds PAYMENT_IN / PAYMENT_OUT
	ColAttendance        = "transactions.attendance"
	ColSessions          = "transactions.sessions"
	ColExpenses          = "transactions.expenses"
	ColAdjustments       = "transactions.hr_adjustments"
	ColSyncQueue         = "syncQueue"
	ColDeadLetter        = "deadLetter"
	ColMeta              = "meta"
)

var ErrNotFound = errors.New("record not found")

// Record is one scanned entry: the key plus the raw document.
type Record struct {
	Key   string
	Value json.RawMessage
}

// Store is the durable local store contract. Put/Delete must be flushed to
// stable storage before returning. Scan returns a materialized snapshot in
// no particular order; callers may iterate it as often as they like.
type Store interface {
	Get(ctx context.Context, collection, key string) (json.RawMessage, error)
	Put(ctx context.Context, collection, key string, value json.RawMessage) error
	Delete(ctx context.Context, collection, key string) error
	Keys(ctx context.Context, collection string) ([]string, error)
	Scan(ctx context.Context, collection string) ([]Record, error)
}

// GetAs loads and unmarshals a single document.
func GetAs[T any](ctx context.Context, s Store, collection, key string) (*T, error) {
	raw, err := s.Get(ctx, collection, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return &v, nil
}

// PutAs marshals and durably writes a document.
func PutAs[T any](ctx context.Context, s Store, collection, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Put(ctx, collection, key, raw)
}

// ScanAs materializes a whole collection as typed values.
func ScanAs[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	recs, err := s.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		var v T
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, r.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
