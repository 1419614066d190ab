package entitlement_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/logger"
)

func TestLogListener(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	l := entitlement.NewLogListener(slog.New(slog.NewJSONHandler(buf, nil)))

	sub := newSubscription("trial-30", "trial", t0)
	tr, _ := sub.LatestTransition()
	require.NoError(t, l.SubscriptionCreated(context.Background(), tr))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "subscription created", entry["msg"])
	assert.Equal(t, sub.ID.String(), entry["subscription_id"])
	assert.Equal(t, "create", entry["transition"])
	assert.Equal(t, map[string]any{"plan": "trial-30", "phase": "trial"}, entry["to"])
}

func TestLogListener_SubscriptionIDFromContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	l := entitlement.NewLogListener(logger.New(logger.WithOutput(buf)))

	sub := newSubscription("trial-30", "trial", t0)
	tr, _ := sub.LatestTransition()
	ctx := logger.WithSubscriptionID(context.Background(), sub.ID)
	require.NoError(t, l.SubscriptionPhaseChanged(ctx, tr))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"subscription_id"`)))
}

func TestListenerFuncs(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	l := entitlement.ListenerFuncs{Cancelled: func(context.Context, entitlement.Transition) error { return boom }}

	ctx := context.Background()
	assert.NoError(t, l.SubscriptionCreated(ctx, entitlement.Transition{}))
	assert.NoError(t, l.SubscriptionChanged(ctx, entitlement.Transition{}))
	assert.NoError(t, l.SubscriptionPhaseChanged(ctx, entitlement.Transition{}))
	assert.ErrorIs(t, l.SubscriptionCancelled(ctx, entitlement.Transition{}), boom)
}
