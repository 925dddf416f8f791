package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string // item ids in delivery order
	fail func(item *model.QueueItem) error
}

func (f *fakeSender) Send(_ context.Context, item *model.QueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(item); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, item.ID)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newQueue(t *testing.T, opts ...Option) (*Queue, *fakeSender, *fakeClock, store.Store) {
	t.Helper()
	st := store.NewMemory()
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(st, sender, opts...), sender, clock, st
}

func seed(t *testing.T, st store.Store, id string, ts int64) {
	t.Helper()
	item := &model.QueueItem{
		ID:         id,
		EntityType: "transaction",
		Action:     model.ActionCreate,
		Payload:    []byte(`{"id":"entity-` + id + `"}`),
		Timestamp:  ts,
	}
	require.NoError(t, store.PutAs(context.Background(), st, store.ColSyncQueue, id, item))
}

func TestDrainFIFOOrder(t *testing.T) {
	ctx := context.Background()
	q, sender, _, st := newQueue(t)

	// Insertion order A, C, B with timestamps 1, 3, 2: delivery must follow
	// the timestamps, not the insertion order.
	seed(t, st, "a", 1)
	seed(t, st, "c", 3)
	seed(t, st, "b", 2)

	res, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, []string{"a", "b", "c"}, sender.sent)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainTimestampTieBreakByID(t *testing.T) {
	ctx := context.Background()
	q, sender, _, st := newQueue(t)

	seed(t, st, "z", 5)
	seed(t, st, "m", 5)
	seed(t, st, "a", 5)

	_, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, sender.sent)
}

func TestDrainHaltsOnFailure(t *testing.T) {
	ctx := context.Background()
	q, sender, _, st := newQueue(t)

	seed(t, st, "a", 1)
	seed(t, st, "b", 2)
	seed(t, st, "c", 3)

	sender.fail = func(item *model.QueueItem) error {
		if item.ID == "b" {
			return errors.New("server said no")
		}
		return nil
	}

	res, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.True(t, res.Halted)
	// c was never attempted
	assert.Equal(t, []string{"a"}, sender.sent)

	// b keeps its retry state durably; c is untouched
	b, err := store.GetAs[model.QueueItem](ctx, st, store.ColSyncQueue, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, b.RetryCount)
	assert.Equal(t, "server said no", b.LastError)
	require.NotNil(t, b.NextAttemptAt)

	c, err := store.GetAs[model.QueueItem](ctx, st, store.ColSyncQueue, "c")
	require.NoError(t, err)
	assert.Zero(t, c.RetryCount)
}

func TestDrainAtLeastOnce(t *testing.T) {
	ctx := context.Background()
	q, sender, clock, st := newQueue(t)

	seed(t, st, "a", 1)

	boom := true
	sender.fail = func(*model.QueueItem) error {
		if boom {
			return errors.New("network down")
		}
		return nil
	}

	res, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.True(t, res.Halted)

	// Still pending: the item is only deleted after an acknowledged send.
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Inside the backoff window nothing is attempted.
	res, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, res.Halted)
	assert.Zero(t, res.Sent)

	boom = false
	clock.Advance(time.Minute)
	res, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, []string{"a"}, sender.sent)
}

func TestDrainDeadLettersExhaustedItems(t *testing.T) {
	ctx := context.Background()
	q, sender, _, st := newQueue(t, WithMaxRetries(1))

	seed(t, st, "a", 1)
	seed(t, st, "b", 2)

	sender.fail = func(item *model.QueueItem) error {
		if item.ID == "a" {
			return errors.New("malformed payload")
		}
		return nil
	}

	res, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLetters)
	// Dead-lettering does not halt: the exhausted item is no longer pending.
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, []string{"b"}, sender.sent)

	dl, err := store.GetAs[DeadLetter](ctx, st, store.ColDeadLetter, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, dl.Attempts)
	assert.Contains(t, dl.Reason, "max retries")

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueueAssignsMonotonicSequence(t *testing.T) {
	ctx := context.Background()
	q, _, _, _ := newQueue(t)

	// Frozen clock: the sequence must still strictly increase.
	first, err := q.Enqueue(ctx, "product", model.ActionCreate, map[string]string{"id": "p1"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, "product", model.ActionUpdate, map[string]string{"id": "p1"})
	require.NoError(t, err)

	assert.Greater(t, second.Timestamp, first.Timestamp)
}

func TestEnqueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	q, sender, clock, st := newQueue(t)

	_, err := q.Enqueue(ctx, "expense", model.ActionCreate, map[string]string{"id": "e1"})
	require.NoError(t, err)

	// A new queue over the same store picks up where the old one left off.
	q2 := New(st, sender, WithClock(clock.Now))
	item, err := q2.Enqueue(ctx, "expense", model.ActionCreate, map[string]string{"id": "e2"})
	require.NoError(t, err)

	pending, err := q2.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, item.ID, pending[1].ID, "restart must not reuse or rewind the sequence")

	res, err := q2.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
}

func TestPendingIDs(t *testing.T) {
	ctx := context.Background()
	q, _, _, _ := newQueue(t)

	_, err := q.Enqueue(ctx, "transaction", model.ActionCreate, map[string]string{"id": "tx-9"})
	require.NoError(t, err)

	ids, err := q.PendingIDs(ctx)
	require.NoError(t, err)
	_, ok := ids["tx-9"]
	assert.True(t, ok)
}

func TestDrainReentryIsSkipped(t *testing.T) {
	ctx := context.Background()
	q, sender, _, st := newQueue(t)
	seed(t, st, "a", 1)

	release := make(chan struct{})
	entered := make(chan struct{})
	sender.fail = func(*model.QueueItem) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := q.Drain(ctx)
		assert.NoError(t, err)
	}()

	<-entered
	_, err := q.Drain(ctx)
	assert.ErrorIs(t, err, ErrDrainInProgress)
	close(release)
	<-done
}
