// Package payroll derives employee pay from attendance, fixed components and
// transaction-linked resolvers. Compute is a pure function of the stored
// snapshot and its arguments: no wall clock, no randomness, stable ordering.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

var (
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrInvalidWorkDays   = errors.New("work days must be positive")
	ErrUnknownResolver   = errors.New("unknown payroll resolver")
	ErrComponentMissing  = errors.New("assigned payroll component not found")
	ErrUnknownCalcMethod = errors.New("unknown calculation method")
)

// Resolver produces the base figure for a TRANSACTION component, e.g. the
// employee's own sales total inside the range. The component's rate, when
// set, is applied to the resolver output afterwards.
type Resolver func(ctx context.Context, p *Processor, employeeID string, ref model.SourceRef, from, to time.Time) (decimal.Decimal, error)

// ComponentResult is one computed pay element.
type ComponentResult struct {
	ComponentID string              `json:"component_id"`
	Name        string              `json:"name"`
	Kind        model.ComponentKind `json:"kind"`
	Amount      decimal.Decimal     `json:"amount"`
}

// Result is the deterministic payroll output for one employee and range.
type Result struct {
	EmployeeID   string            `json:"employee_id"`
	BasePay      decimal.Decimal   `json:"base_pay"`
	Components   []ComponentResult `json:"components"`
	Adjustments  decimal.Decimal   `json:"adjustments"`
	NetPay       decimal.Decimal   `json:"net_pay"`
	DaysAttended int               `json:"days_attended"`
}

// Processor computes payroll over the local store. The location fixes which
// calendar an attendance timestamp belongs to, so distinct-day counting does
// not depend on the process environment.
type Processor struct {
	st        store.Store
	loc       *time.Location
	resolvers map[model.SourceKey]Resolver
}

type Option func(*Processor)

func WithLocation(loc *time.Location) Option {
	return func(p *Processor) { p.loc = loc }
}

func New(st store.Store, opts ...Option) *Processor {
	p := &Processor{st: st, loc: time.Local}
	p.resolvers = map[model.SourceKey]Resolver{
		model.SourceSalesTotal:       resolveSalesTotal,
		model.SourcePurchasesTotal:   resolvePurchasesTotal,
		model.SourceExpensesCategory: resolveExpensesCategory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a resolver under a new key. Re-registering an existing key
// is an error so built-ins cannot be shadowed by accident.
func (p *Processor) Register(key model.SourceKey, r Resolver) error {
	if _, exists := p.resolvers[key]; exists {
		return fmt.Errorf("resolver %q already registered", key)
	}
	p.resolvers[key] = r
	return nil
}

// ComputeForEmployee computes pay for one employee over [from, to].
// workDays is the number of working days in the period, used to prorate
// ATTENDANCE components.
func (p *Processor) ComputeForEmployee(ctx context.Context, employeeID string, from, to time.Time, workDays int) (*Result, error) {
	if workDays <= 0 {
		return nil, ErrInvalidWorkDays
	}

	emp, err := store.GetAs[model.Employee](ctx, p.st, store.ColEmployees, employeeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, employeeID)
	}
	if err != nil {
		return nil, err
	}

	days, err := p.daysAttended(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	var basePay decimal.Decimal
	switch emp.BaseMethod {
	case model.BasePerDay:
		basePay = emp.BaseSalary.Mul(decimal.NewFromInt(int64(days)))
	case model.BaseMonthly:
		basePay = emp.BaseSalary
	default:
		return nil, fmt.Errorf("employee %s: unknown base method %q", employeeID, emp.BaseMethod)
	}

	components, err := p.computeComponents(ctx, emp.ID, from, to, days, workDays)
	if err != nil {
		return nil, err
	}

	adjustments, err := p.sumAdjustments(ctx, emp.ID, from, to)
	if err != nil {
		return nil, err
	}

	net := basePay
	for _, c := range components {
		switch c.Kind {
		case model.Allowance:
			net = net.Add(c.Amount)
		case model.Deduction:
			net = net.Sub(c.Amount)
		default:
			return nil, fmt.Errorf("component %s: unknown kind %q", c.ComponentID, c.Kind)
		}
	}
	net = net.Add(adjustments)

	return &Result{
		EmployeeID:   emp.ID,
		BasePay:      basePay,
		Components:   components,
		Adjustments:  adjustments,
		NetPay:       net,
		DaysAttended: days,
	}, nil
}

// daysAttended counts distinct calendar days with at least one CHECK_IN.
func (p *Processor) daysAttended(ctx context.Context, employeeID string, from, to time.Time) (int, error) {
	events, err := store.ScanAs[model.Attendance](ctx, p.st, store.ColAttendance)
	if err != nil {
		return 0, err
	}
	days := make(map[string]struct{})
	for i := range events {
		ev := &events[i]
		if ev.EmployeeID != employeeID || ev.Type != model.CheckIn {
			continue
		}
		if !inRange(ev.Timestamp, from, to) {
			continue
		}
		days[ev.Timestamp.In(p.loc).Format("2006-01-02")] = struct{}{}
	}
	return len(days), nil
}

func (p *Processor) computeComponents(ctx context.Context, employeeID string, from, to time.Time, days, workDays int) ([]ComponentResult, error) {
	lines, err := store.ScanAs[model.PayrollLine](ctx, p.st, store.ColPayrollLines)
	if err != nil {
		return nil, err
	}

	var results []ComponentResult
	for i := range lines {
		line := &lines[i]
		if line.EmployeeID != employeeID {
			continue
		}
		comp, err := store.GetAs[model.PayrollComponent](ctx, p.st, store.ColPayrollComponents, line.ComponentID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s (line %s)", ErrComponentMissing, line.ComponentID, line.ID)
		}
		if err != nil {
			return nil, err
		}

		amount, err := p.componentAmount(ctx, comp, line, employeeID, from, to, days, workDays)
		if err != nil {
			return nil, err
		}
		results = append(results, ComponentResult{
			ComponentID: comp.ID,
			Name:        comp.Name,
			Kind:        comp.Kind,
			Amount:      amount,
		})
	}

	// Stable output ordering regardless of scan order.
	sort.Slice(results, func(i, j int) bool { return results[i].ComponentID < results[j].ComponentID })
	return results, nil
}

func (p *Processor) componentAmount(ctx context.Context, comp *model.PayrollComponent, line *model.PayrollLine, employeeID string, from, to time.Time, days, workDays int) (decimal.Decimal, error) {
	base := comp.Amount
	if line.Override != nil {
		base = *line.Override
	}

	switch comp.Method {
	case model.CalcFixed:
		return base, nil
	case model.CalcAttendance:
		return base.
			Mul(decimal.NewFromInt(int64(days))).
			Div(decimal.NewFromInt(int64(workDays))), nil
	case model.CalcTransaction:
		if comp.Source == nil {
			return decimal.Zero, fmt.Errorf("component %s: TRANSACTION method without source", comp.ID)
		}
		resolver, ok := p.resolvers[comp.Source.Key]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %q (component %s)", ErrUnknownResolver, comp.Source.Key, comp.ID)
		}
		figure, err := resolver(ctx, p, employeeID, *comp.Source, from, to)
		if err != nil {
			return decimal.Zero, err
		}
		if comp.Rate != nil {
			return figure.Mul(*comp.Rate), nil
		}
		return figure, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q (component %s)", ErrUnknownCalcMethod, comp.Method, comp.ID)
	}
}

func (p *Processor) sumAdjustments(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	adjustments, err := store.ScanAs[model.Adjustment](ctx, p.st, store.ColAdjustments)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range adjustments {
		a := &adjustments[i]
		if a.EmployeeID == employeeID && inRange(a.Date, from, to) {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}

func (p *Processor) sumTransactions(ctx context.Context, collection string, kind model.Kind, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	txs, err := store.ScanAs[model.Transaction](ctx, p.st, collection)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range txs {
		tx := &txs[i]
		if tx.Kind == kind && tx.EmployeeID == employeeID && inRange(tx.CreatedAt, from, to) {
			total = total.Add(tx.TotalAmount)
		}
	}
	return total, nil
}

func resolveSalesTotal(ctx context.Context, p *Processor, employeeID string, _ model.SourceRef, from, to time.Time) (decimal.Decimal, error) {
	return p.sumTransactions(ctx, store.ColSales, model.KindSale, employeeID, from, to)
}

func resolvePurchasesTotal(ctx context.Context, p *Processor, employeeID string, _ model.SourceRef, from, to time.Time) (decimal.Decimal, error) {
	return p.sumTransactions(ctx, store.ColPurchases, model.KindPurchase, employeeID, from, to)
}

func resolveExpensesCategory(ctx context.Context, p *Processor, _ string, ref model.SourceRef, from, to time.Time) (decimal.Decimal, error) {
	if ref.Category == "" {
		return decimal.Zero, errors.New("expenses-category resolver requires a category")
	}
	expenses, err := store.ScanAs[model.Expense](ctx, p.st, store.ColExpenses)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range expenses {
		e := &expenses[i]
		if e.Category == ref.Category && inRange(e.CreatedAt, from, to) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
