package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/delivery"
)

type mockPublisherRepo struct {
	mock.Mock
}

func (m *mockPublisherRepo) DeletePending(ctx context.Context, dedupKey string) (bool, error) {
	args := m.Called(ctx, dedupKey)
	return args.Bool(0), args.Error(1)
}

func (m *mockPublisherRepo) Insert(ctx context.Context, env *delivery.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestNewPublisher(t *testing.T) {
	t.Parallel()

	_, err := delivery.NewPublisher(nil)
	assert.ErrorIs(t, err, delivery.ErrRepositoryNil)

	p, err := delivery.NewPublisher(delivery.NewMemoryStorage())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	t.Run("encodes struct payload with defaults", func(t *testing.T) {
		t.Parallel()
		repo := &mockPublisherRepo{}
		repo.On("Insert", mock.Anything, mock.MatchedBy(func(env *delivery.Envelope) bool {
			return env.Queue == delivery.DefaultQueueName &&
				env.Topic == "topic" &&
				env.Status == delivery.StatusPending &&
				env.MaxAttempts == 5 &&
				env.DeliverAt.Equal(now) &&
				env.DedupKey == nil &&
				string(env.Payload) == `{"n":1}`
		})).Return(nil)

		p, err := delivery.NewPublisher(repo, delivery.WithPublisherClock(clock))
		require.NoError(t, err)

		env, err := p.Publish(context.Background(), "topic", struct {
			N int `json:"n"`
		}{N: 1})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, env.ID)
		repo.AssertExpectations(t)
	})

	t.Run("raw payload is stored as-is", func(t *testing.T) {
		t.Parallel()
		store := delivery.NewMemoryStorage()
		p, err := delivery.NewPublisher(store)
		require.NoError(t, err)

		env, err := p.Publish(context.Background(), "topic", json.RawMessage(`{"raw":true}`))
		require.NoError(t, err)

		got, ok := store.Get(env.ID)
		require.True(t, ok)
		assert.JSONEq(t, `{"raw":true}`, string(got.Payload))
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		store := delivery.NewMemoryStorage()
		p, err := delivery.NewPublisher(store,
			delivery.WithPublisherClock(clock),
			delivery.WithDefaultQueue("q1"),
			delivery.WithDefaultMaxAttempts(3),
		)
		require.NoError(t, err)

		at := now.Add(48 * time.Hour)
		env, err := p.Publish(context.Background(), "topic", []byte("{}"),
			delivery.WithDeliverAt(at),
			delivery.WithDelay(time.Minute),
			delivery.WithDedupKey("k"),
			delivery.WithMaxAttempts(7),
		)
		require.NoError(t, err)
		assert.Equal(t, "q1", env.Queue)
		assert.Equal(t, at, env.DeliverAt)
		assert.Equal(t, int16(7), env.MaxAttempts)
		require.NotNil(t, env.DedupKey)
		assert.Equal(t, "k", *env.DedupKey)

		env, err = p.Publish(context.Background(), "topic", []byte("{}"), delivery.WithDelay(time.Minute), delivery.WithQueue("q2"))
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Minute), env.DeliverAt)
		assert.Equal(t, "q2", env.Queue)
		assert.Equal(t, int16(3), env.MaxAttempts)
	})

	t.Run("duplicate dedup key", func(t *testing.T) {
		t.Parallel()
		p, err := delivery.NewPublisher(delivery.NewMemoryStorage())
		require.NoError(t, err)

		_, err = p.Publish(context.Background(), "topic", []byte("{}"), delivery.WithDedupKey("k"))
		require.NoError(t, err)
		_, err = p.Publish(context.Background(), "topic", []byte("{}"), delivery.WithDedupKey("k"))
		assert.ErrorIs(t, err, delivery.ErrDuplicate)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		p, err := delivery.NewPublisher(delivery.NewMemoryStorage())
		require.NoError(t, err)

		_, err = p.Publish(context.Background(), "", []byte("{}"))
		assert.ErrorIs(t, err, delivery.ErrTopicEmpty)
		_, err = p.Publish(context.Background(), "topic", nil)
		assert.ErrorIs(t, err, delivery.ErrPayloadNil)
		_, err = p.Publish(context.Background(), "topic", make(chan int))
		assert.Error(t, err)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		repo := &mockPublisherRepo{}
		repo.On("Insert", mock.Anything, mock.Anything).Return(boom)

		p, err := delivery.NewPublisher(repo)
		require.NoError(t, err)
		_, err = p.Publish(context.Background(), "topic", []byte("{}"))
		assert.ErrorIs(t, err, boom)
	})
}

func TestPublisher_Withdraw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removes the pending envelope and frees the key", func(t *testing.T) {
		t.Parallel()
		store := delivery.NewMemoryStorage()
		p, err := delivery.NewPublisher(store)
		require.NoError(t, err)

		old, err := p.Publish(ctx, "topic", []byte(`{"n":1}`), delivery.WithDedupKey("k"), delivery.WithDelay(time.Hour))
		require.NoError(t, err)

		removed, err := p.Withdraw(ctx, "k")
		require.NoError(t, err)
		assert.True(t, removed)
		_, ok := store.Get(old.ID)
		assert.False(t, ok)

		_, err = p.Publish(ctx, "topic", []byte(`{"n":2}`), delivery.WithDedupKey("k"))
		require.NoError(t, err)
		assert.Len(t, store.Envelopes(), 1)
	})

	t.Run("claimed envelopes are kept", func(t *testing.T) {
		t.Parallel()
		store := delivery.NewMemoryStorage()
		p, err := delivery.NewPublisher(store)
		require.NoError(t, err)

		env, err := p.Publish(ctx, "topic", []byte(`{}`), delivery.WithDedupKey("k"))
		require.NoError(t, err)
		_, err = store.Claim(ctx, uuid.New(), []string{delivery.DefaultQueueName}, time.Minute)
		require.NoError(t, err)

		removed, err := p.Withdraw(ctx, "k")
		require.NoError(t, err)
		assert.False(t, removed)
		_, ok := store.Get(env.ID)
		assert.True(t, ok)
	})

	t.Run("empty key is a no-op", func(t *testing.T) {
		t.Parallel()
		repo := &mockPublisherRepo{}
		p, err := delivery.NewPublisher(repo)
		require.NoError(t, err)

		removed, err := p.Withdraw(ctx, "")
		require.NoError(t, err)
		assert.False(t, removed)
		repo.AssertNotCalled(t, "DeletePending", mock.Anything, mock.Anything)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		repo := &mockPublisherRepo{}
		repo.On("DeletePending", mock.Anything, "k").Return(false, boom)

		p, err := delivery.NewPublisher(repo)
		require.NoError(t, err)
		_, err = p.Withdraw(ctx, "k")
		assert.ErrorIs(t, err, boom)
	})
}
