package delivery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/delivery"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newEnvelope(queue string, deliverAt time.Time) *delivery.Envelope {
	return &delivery.Envelope{
		ID:          uuid.New(),
		Queue:       queue,
		Topic:       "topic",
		Payload:     []byte("{}"),
		Status:      delivery.StatusPending,
		MaxAttempts: 2,
		DeliverAt:   deliverAt,
		CreatedAt:   deliverAt,
	}
}

func TestMemoryStorage_Claim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	worker := uuid.New()

	t.Run("nothing due", func(t *testing.T) {
		t.Parallel()
		clk := &testClock{t: now}
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clk.Now))
		require.NoError(t, ms.Insert(ctx, newEnvelope("q", now.Add(time.Hour))))

		_, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		assert.ErrorIs(t, err, delivery.ErrNoEnvelopeToClaim)

		clk.Advance(time.Hour)
		env, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusProcessing, env.Status)
		require.NotNil(t, env.LockedBy)
		assert.Equal(t, worker, *env.LockedBy)
	})

	t.Run("earliest due first and queue filter", func(t *testing.T) {
		t.Parallel()
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clock))
		late := newEnvelope("q", now.Add(-time.Minute))
		early := newEnvelope("q", now.Add(-time.Hour))
		other := newEnvelope("other", now.Add(-2*time.Hour))
		for _, e := range []*delivery.Envelope{late, early, other} {
			require.NoError(t, ms.Insert(ctx, e))
		}

		env, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, early.ID, env.ID)

		env, err = ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, late.ID, env.ID)

		_, err = ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		assert.ErrorIs(t, err, delivery.ErrNoEnvelopeToClaim)
	})

	t.Run("claim releases dedup key", func(t *testing.T) {
		t.Parallel()
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clock))
		key := "phase/x"
		first := newEnvelope("q", now)
		first.DedupKey = &key
		require.NoError(t, ms.Insert(ctx, first))

		second := newEnvelope("q", now)
		second.DedupKey = &key
		assert.ErrorIs(t, ms.Insert(ctx, second), delivery.ErrDuplicate)

		_, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		assert.NoError(t, ms.Insert(ctx, second))
	})

	t.Run("expired lock is reclaimable", func(t *testing.T) {
		t.Parallel()
		clk := &testClock{t: now}
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clk.Now))
		e := newEnvelope("q", now)
		require.NoError(t, ms.Insert(ctx, e))

		_, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		_, err = ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		assert.ErrorIs(t, err, delivery.ErrNoEnvelopeToClaim)

		clk.Advance(2 * time.Minute)
		env, err := ms.Claim(ctx, uuid.New(), []string{"q"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, e.ID, env.ID)
	})
}

func TestMemoryStorage_Settle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	worker := uuid.New()

	t.Run("ack", func(t *testing.T) {
		t.Parallel()
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clock))
		e := newEnvelope("q", now)
		require.NoError(t, ms.Insert(ctx, e))
		assert.ErrorIs(t, ms.Ack(ctx, e.ID), delivery.ErrEnvelopeNotFound)

		_, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, ms.Ack(ctx, e.ID))

		got, ok := ms.Get(e.ID)
		require.True(t, ok)
		assert.Equal(t, delivery.StatusDelivered, got.Status)
		assert.NotNil(t, got.DeliveredAt)
		assert.Nil(t, got.LockedBy)
	})

	t.Run("nack reschedules then fails", func(t *testing.T) {
		t.Parallel()
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clock))
		e := newEnvelope("q", now)
		require.NoError(t, ms.Insert(ctx, e))

		_, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, ms.Nack(ctx, e.ID, "boom", now.Add(-time.Second)))

		got, _ := ms.Get(e.ID)
		assert.Equal(t, delivery.StatusPending, got.Status)
		assert.Equal(t, int16(1), got.Attempts)
		require.NotNil(t, got.Error)
		assert.Equal(t, "boom", *got.Error)

		_, err = ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, ms.Nack(ctx, e.ID, "boom again", now))

		got, _ = ms.Get(e.ID)
		assert.Equal(t, delivery.StatusFailed, got.Status)
		assert.Equal(t, int16(2), got.Attempts)

		require.NoError(t, ms.DeadLetter(ctx, e.ID, "boom again"))
		_, ok := ms.Get(e.ID)
		assert.False(t, ok)

		dl := ms.DeadLetters()
		require.Len(t, dl, 1)
		assert.Equal(t, e.ID, dl[0].EnvelopeID)
		assert.Equal(t, int16(2), dl[0].Attempts)
	})

	t.Run("dead letter requires in-flight or failed", func(t *testing.T) {
		t.Parallel()
		ms := delivery.NewMemoryStorage()
		e := newEnvelope("q", now)
		require.NoError(t, ms.Insert(ctx, e))
		assert.ErrorIs(t, ms.DeadLetter(ctx, e.ID, "x"), delivery.ErrEnvelopeNotFound)
		assert.ErrorIs(t, ms.DeadLetter(ctx, uuid.New(), "x"), delivery.ErrEnvelopeNotFound)
	})

	t.Run("extend lock", func(t *testing.T) {
		t.Parallel()
		ms := delivery.NewMemoryStorage(delivery.WithStorageClock(clock))
		e := newEnvelope("q", now)
		require.NoError(t, ms.Insert(ctx, e))
		assert.ErrorIs(t, ms.ExtendLock(ctx, e.ID, time.Hour), delivery.ErrEnvelopeNotFound)

		_, err := ms.Claim(ctx, worker, []string{"q"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, ms.ExtendLock(ctx, e.ID, time.Hour))

		got, _ := ms.Get(e.ID)
		require.NotNil(t, got.LockedUntil)
		assert.Equal(t, now.Add(time.Hour), *got.LockedUntil)
	})
}
