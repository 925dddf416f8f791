// Package outbox implements the durable outbound mutation queue: every local
// write enqueues a full payload snapshot here, and Drain delivers pending
// items to the remote endpoint strictly in enqueue order. Items survive
// crashes because all state (pending records, retry counters, next-attempt
// schedule) lives in the local store.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

const (
	// DefaultMaxRetries is the dead-letter threshold: after this many failed
	// sends the item is parked in the deadLetter collection for manual
	// intervention instead of blocking the queue forever.
	DefaultMaxRetries = 8

	backoffBase = time.Second
	backoffCap  = 5 * time.Minute
)

// ErrDrainInProgress is returned when Drain is invoked re-entrantly (e.g. a
// reconnect event firing while a timer-triggered drain is still running).
var ErrDrainInProgress = errors.New("drain already in progress")

// Sender delivers one queue item to the remote system. A nil error means the
// remote acknowledged receipt; any error halts the batch.
type Sender interface {
	Send(ctx context.Context, item *model.QueueItem) error
}

// DeadLetter wraps an exhausted item with failure metadata, mirrored after
// the entry shape used for manual DLQ inspection.
type DeadLetter struct {
	Item     model.QueueItem `json:"item"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
	Attempts int             `json:"attempts"`
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Sent        int
	DeadLetters int
	// Halted is set when a failing (or backoff-deferred) item stopped the
	// batch; the remaining items were not attempted.
	Halted bool
}

// Queue is the durable outbox. Enqueue never blocks on network I/O; Drain is
// guarded by a mutual-exclusion flag so overlapping triggers collapse into
// one pass.
type Queue struct {
	st         store.Store
	sender     Sender
	clock      func() time.Time
	maxRetries int

	draining atomic.Bool
	lastSeq  atomic.Int64
	initSeq  sync.Once

	// onEnqueue, when set, is invoked after a successful enqueue while the
	// device reports connectivity. The sync engine uses it to schedule an
	// async drain.
	online    func() bool
	onEnqueue func()
}

type Option func(*Queue)

func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

func New(st store.Store, sender Sender, opts ...Option) *Queue {
	q := &Queue{
		st:         st,
		sender:     sender,
		clock:      time.Now,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetDrainTrigger wires the connectivity probe and the async drain hook.
// Enqueue fires trigger (in a goroutine) only while online() is true.
func (q *Queue) SetDrainTrigger(online func() bool, trigger func()) {
	q.online = online
	q.onEnqueue = trigger
}

// Enqueue persists a new queue item with a monotonically increasing sequence
// timestamp and returns it. The caller's goroutine never touches the
// network; delivery happens on the next drain.
func (q *Queue) Enqueue(ctx context.Context, entityType string, action model.QueueAction, payload any) (*model.QueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("outbox: encode payload: %w", err)
	}

	item := &model.QueueItem{
		ID:         uuid.NewString(),
		EntityType: entityType,
		Action:     action,
		Payload:    raw,
		Timestamp:  q.nextSeq(ctx),
	}
	if err := store.PutAs(ctx, q.st, store.ColSyncQueue, item.ID, item); err != nil {
		return nil, fmt.Errorf("outbox: persist item: %w", err)
	}

	log.Debug().
		Str("item_id", item.ID).
		Str("entity_type", entityType).
		Str("action", string(action)).
		Msg("outbox: enqueued")

	if q.online != nil && q.onEnqueue != nil && q.online() {
		go q.onEnqueue()
	}
	return item, nil
}

// Pending returns all queued items in delivery order: sequence timestamp
// ascending, id lexical tie-break. The store itself guarantees no retrieval
// order.
func (q *Queue) Pending(ctx context.Context) ([]model.QueueItem, error) {
	items, err := store.ScanAs[model.QueueItem](ctx, q.st, store.ColSyncQueue)
	if err != nil {
		return nil, fmt.Errorf("outbox: load pending: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Before(&items[j]) })
	return items, nil
}

// PendingIDs returns the set of entity ids that still have an
// unacknowledged outbound mutation. Pull uses it to avoid reverting a local
// edit with a stale remote copy.
func (q *Queue) PendingIDs(ctx context.Context) (map[string]struct{}, error) {
	items, err := store.ScanAs[model.QueueItem](ctx, q.st, store.ColSyncQueue)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(items))
	for i := range items {
		if id := items[i].PayloadID(); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// Drain sends pending items strictly sequentially. An acknowledged item is
// deleted; a failed item gets its retry counter bumped and a backoff window,
// and the remainder of the batch is not attempted — halting preserves
// delivery order, at-least-once is guaranteed because the item is only
// deleted after the ack. Items past the dead-letter threshold are parked and
// the drain continues, since they are no longer pending.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{}, ErrDrainInProgress
	}
	defer q.draining.Store(false)

	var res DrainResult
	items, err := q.Pending(ctx)
	if err != nil {
		return res, err
	}

	for i := range items {
		// Cancellation is honored only between records; a record is sent
		// atomically or not at all.
		select {
		case <-ctx.Done():
			res.Halted = true
			return res, ctx.Err()
		default:
		}

		item := &items[i]
		now := q.clock()
		if item.NextAttemptAt != nil && item.NextAttemptAt.After(now) {
			// Still inside the backoff window. Later items must not jump
			// the queue, so the pass ends here.
			res.Halted = true
			return res, nil
		}

		if err := q.sender.Send(ctx, item); err != nil {
			item.RetryCount++
			item.LastError = err.Error()

			if item.RetryCount >= q.maxRetries {
				if dlErr := q.deadLetter(ctx, item, err); dlErr != nil {
					res.Halted = true
					return res, dlErr
				}
				res.DeadLetters++
				continue
			}

			next := now.Add(retryBackoff(item.RetryCount))
			item.NextAttemptAt = &next
			if perr := store.PutAs(ctx, q.st, store.ColSyncQueue, item.ID, item); perr != nil {
				res.Halted = true
				return res, fmt.Errorf("outbox: persist retry state: %w", perr)
			}

			log.Warn().
				Str("item_id", item.ID).
				Str("entity_type", item.EntityType).
				Int("retry_count", item.RetryCount).
				Time("next_attempt_at", next).
				Err(err).
				Msg("outbox: send failed, batch halted")
			res.Halted = true
			return res, nil
		}

		if err := q.st.Delete(ctx, store.ColSyncQueue, item.ID); err != nil {
			// The remote has the item but local state still lists it as
			// pending; the next drain will resend. The remote must treat
			// deliveries idempotently.
			res.Halted = true
			return res, fmt.Errorf("outbox: delete acked item: %w", err)
		}
		res.Sent++
	}

	if res.Sent > 0 || res.DeadLetters > 0 {
		log.Info().
			Int("sent", res.Sent).
			Int("dead_letters", res.DeadLetters).
			Msg("outbox: drain complete")
	}
	return res, nil
}

// Len reports the number of pending items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	keys, err := q.st.Keys(ctx, store.ColSyncQueue)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (q *Queue) deadLetter(ctx context.Context, item *model.QueueItem, cause error) error {
	entry := &DeadLetter{
		Item:     *item,
		Reason:   fmt.Sprintf("max retries (%d) exceeded: %s", q.maxRetries, cause),
		FailedAt: q.clock().UTC(),
		Attempts: item.RetryCount,
	}
	if err := store.PutAs(ctx, q.st, store.ColDeadLetter, item.ID, entry); err != nil {
		return fmt.Errorf("outbox: park dead letter: %w", err)
	}
	if err := q.st.Delete(ctx, store.ColSyncQueue, item.ID); err != nil {
		return fmt.Errorf("outbox: remove dead-lettered item: %w", err)
	}
	log.Error().
		Str("item_id", item.ID).
		Str("entity_type", item.EntityType).
		Int("attempts", item.RetryCount).
		Msg("outbox: item moved to dead letter")
	return nil
}

// nextSeq produces a strictly increasing epoch-millisecond sequence. It is
// seeded from the highest persisted timestamp so restarts cannot reuse a
// sequence value; id tie-break covers items written by a previous process
// in the same millisecond.
func (q *Queue) nextSeq(ctx context.Context) int64 {
	q.initSeq.Do(func() {
		items, err := store.ScanAs[model.QueueItem](ctx, q.st, store.ColSyncQueue)
		if err != nil {
			return
		}
		var max int64
		for i := range items {
			if items[i].Timestamp > max {
				max = items[i].Timestamp
			}
		}
		q.lastSeq.Store(max)
	})
	for {
		now := q.clock().UnixMilli()
		last := q.lastSeq.Load()
		if now <= last {
			now = last + 1
		}
		if q.lastSeq.CompareAndSwap(last, now) {
			return now
		}
	}
}

// retryBackoff doubles per attempt: 2s, 4s, 8s... capped at backoffCap.
func retryBackoff(retryCount int) time.Duration {
	d := backoffBase
	for i := 0; i < retryCount && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
