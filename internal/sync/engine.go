// Package sync orchestrates push (outbox drain) and pull (remote merge-down).
// Push and pull are serialized per engine so a pull can never overwrite a
// record while its outbound mutation is mid-flight, and pull additionally
// skips any entity that still has a pending outbox item.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/outbox"
	"github.com/quillgit/trader-pos-sub000/internal/remote"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

const (
	metaWatermark = "last_sync"
	metaSettings  = "settings"
)

// Connectivity reports whether the device currently has network access.
type Connectivity interface {
	Online() bool
}

// OnlineFunc adapts a func to Connectivity.
type OnlineFunc func() bool

func (f OnlineFunc) Online() bool { return f() }

// AlwaysOnline is the default probe for deployments without a reachability
// signal.
var AlwaysOnline Connectivity = OnlineFunc(func() bool { return true })

type watermark struct {
	LastSync time.Time `json:"last_sync"`
}

// Status is a point-in-time view for the UI.
type Status struct {
	Online      bool      `json:"online"`
	PendingPush int       `json:"pending_push"`
	LastSync    time.Time `json:"last_sync"`
}

// Engine drives synchronization. Triggers: Start (application start +
// periodic schedules), TriggerSync (explicit user action), OnReconnect
// (connectivity event). All of them funnel into Push/Pull behind one mutex.
type Engine struct {
	mu     sync.Mutex
	st     store.Store
	queue  *outbox.Queue
	client remote.Client
	conn   Connectivity
	cron   *cron.Cron

	pullSpec  string
	drainSpec string
}

type Option func(*Engine)

// WithSchedules overrides the cron specs for the periodic pull and the
// drain retry tick.
func WithSchedules(pullSpec, drainSpec string) Option {
	return func(e *Engine) {
		e.pullSpec = pullSpec
		e.drainSpec = drainSpec
	}
}

func WithConnectivity(conn Connectivity) Option {
	return func(e *Engine) { e.conn = conn }
}

func New(st store.Store, queue *outbox.Queue, client remote.Client, opts ...Option) *Engine {
	e := &Engine{
		st:        st,
		queue:     queue,
		client:    client,
		conn:      AlwaysOnline,
		cron:      cron.New(),
		pullSpec:  "@every 5m",
		drainSpec: "@every 30s",
	}
	for _, opt := range opts {
		opt(e)
	}
	// Enqueue wakes the push side asynchronously while online.
	queue.SetDrainTrigger(e.conn.Online, func() {
		if _, err := e.Push(context.Background()); err != nil && !errors.Is(err, outbox.ErrDrainInProgress) {
			log.Error().Err(err).Msg("sync: enqueue-triggered push failed")
		}
	})
	return e
}

// Start runs an initial pull and installs the periodic schedules.
func (e *Engine) Start(ctx context.Context) {
	if e.conn.Online() {
		if err := e.Pull(ctx); err != nil {
			log.Warn().Err(err).Msg("sync: initial pull failed")
		}
		if _, err := e.Push(ctx); err != nil && !errors.Is(err, outbox.ErrDrainInProgress) {
			log.Warn().Err(err).Msg("sync: initial push failed")
		}
	}

	if _, err := e.cron.AddFunc(e.pullSpec, func() { e.tick(true) }); err != nil {
		log.Error().Err(err).Str("schedule", e.pullSpec).Msg("sync: bad pull schedule")
	}
	if _, err := e.cron.AddFunc(e.drainSpec, func() { e.tick(false) }); err != nil {
		log.Error().Err(err).Str("schedule", e.drainSpec).Msg("sync: bad drain schedule")
	}
	e.cron.Start()
	log.Info().Str("pull", e.pullSpec).Str("drain", e.drainSpec).Msg("sync: engine started")
}

// Stop halts the schedules. An in-flight pass finishes its current record.
func (e *Engine) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("sync: engine stopped")
}

func (e *Engine) tick(withPull bool) {
	if !e.conn.Online() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := e.Push(ctx); err != nil && !errors.Is(err, outbox.ErrDrainInProgress) {
		log.Warn().Err(err).Msg("sync: scheduled push failed")
	}
	if withPull {
		if err := e.Pull(ctx); err != nil {
			log.Warn().Err(err).Msg("sync: scheduled pull failed")
		}
	}
}

// OnReconnect is the connectivity-event trigger.
func (e *Engine) OnReconnect() {
	go e.tick(true)
}

// TriggerSync is the explicit user trigger: push then pull, synchronously.
func (e *Engine) TriggerSync(ctx context.Context) error {
	if _, err := e.Push(ctx); err != nil && !errors.Is(err, outbox.ErrDrainInProgress) {
		return err
	}
	return e.Pull(ctx)
}

// Push drains the outbox under the engine mutex.
func (e *Engine) Push(ctx context.Context) (outbox.DrainResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Drain(ctx)
}

// Pull merges remote state down. Conflict policy is last-writer-wins at
// whole-record granularity, except that entities with a pending outbox item
// are skipped so an unacknowledged local edit is never silently reverted.
// The watermark advances only after every write succeeded; on failure the
// next pull retries the same window.
func (e *Engine) Pull(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending, err := e.queue.PendingIDs(ctx)
	if err != nil {
		return fmt.Errorf("sync: pending ids: %w", err)
	}

	master, err := e.client.FetchMaster(ctx)
	if err != nil {
		return err
	}
	if err := e.mergeMaster(ctx, master, pending); err != nil {
		return err
	}

	since, err := e.Watermark(ctx)
	if err != nil {
		return err
	}
	batch, err := e.client.PullTransactions(ctx, since)
	if err != nil {
		return err
	}
	if err := e.mergeBatch(ctx, batch, pending); err != nil {
		return err
	}

	wm := watermark{LastSync: batch.ServerTime}
	if err := store.PutAs(ctx, e.st, store.ColMeta, metaWatermark, &wm); err != nil {
		return fmt.Errorf("sync: advance watermark: %w", err)
	}

	log.Info().
		Time("since", since).
		Time("watermark", batch.ServerTime).
		Int("transactions", len(batch.Transactions)).
		Int("expenses", len(batch.Expenses)).
		Msg("sync: pull complete")
	return nil
}

func (e *Engine) mergeMaster(ctx context.Context, m *remote.MasterData, pending map[string]struct{}) error {
	for i := range m.Products {
		p := m.Products[i]
		if _, skip := pending[p.ID]; skip {
			continue
		}
		if err := store.PutAs(ctx, e.st, store.ColProducts, p.ID, &p); err != nil {
			return fmt.Errorf("sync: merge product %s: %w", p.ID, err)
		}
	}
	for i := range m.Partners {
		p := m.Partners[i]
		if _, skip := pending[p.ID]; skip {
			continue
		}
		if err := store.PutAs(ctx, e.st, store.ColPartners, p.ID, &p); err != nil {
			return fmt.Errorf("sync: merge partner %s: %w", p.ID, err)
		}
	}
	for i := range m.Employees {
		emp := m.Employees[i]
		if _, skip := pending[emp.ID]; skip {
			continue
		}
		if err := store.PutAs(ctx, e.st, store.ColEmployees, emp.ID, &emp); err != nil {
			return fmt.Errorf("sync: merge employee %s: %w", emp.ID, err)
		}
	}
	if m.Settings != nil {
		if err := store.PutAs(ctx, e.st, store.ColMeta, metaSettings, &m.Settings); err != nil {
			return fmt.Errorf("sync: merge settings: %w", err)
		}
	}
	return nil
}

func (e *Engine) mergeBatch(ctx context.Context, b *remote.TransactionBatch, pending map[string]struct{}) error {
	for i := range b.Transactions {
		tx := b.Transactions[i]
		if _, skip := pending[tx.ID]; skip {
			continue
		}
		col, err := store.CollectionForKind(tx.Kind)
		if err != nil {
			return fmt.Errorf("sync: transaction %s: %w", tx.ID, err)
		}
		tx.Status = model.SyncSynced
		if err := store.PutAs(ctx, e.st, col, tx.ID, &tx); err != nil {
			return fmt.Errorf("sync: merge transaction %s: %w", tx.ID, err)
		}
	}
	for i := range b.Expenses {
		exp := b.Expenses[i]
		if _, skip := pending[exp.ID]; skip {
			continue
		}
		exp.Status = model.SyncSynced
		if err := store.PutAs(ctx, e.st, store.ColExpenses, exp.ID, &exp); err != nil {
			return fmt.Errorf("sync: merge expense %s: %w", exp.ID, err)
		}
	}
	return nil
}

// Watermark returns the last successfully pulled server timestamp, zero if
// no pull has completed yet.
func (e *Engine) Watermark(ctx context.Context) (time.Time, error) {
	wm, err := store.GetAs[watermark](ctx, e.st, store.ColMeta, metaWatermark)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sync: read watermark: %w", err)
	}
	return wm.LastSync, nil
}

// Status reports queue depth and watermark for the UI.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	n, err := e.queue.Len(ctx)
	if err != nil {
		return nil, err
	}
	wm, err := e.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Online: e.conn.Online(), PendingPush: n, LastSync: wm}, nil
}

// PushSettings persists the settings document locally then forwards it
// through the outbox so it reaches the remote in order with other writes.
func (e *Engine) PushSettings(ctx context.Context, settings map[string]any) error {
	if _, err := e.queue.Enqueue(ctx, "settings", model.ActionUpdate, settings); err != nil {
		return err
	}
	return store.PutAs(ctx, e.st, store.ColMeta, metaSettings, &settings)
}
