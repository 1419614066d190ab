package entitlement_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

func TestEventCodec(t *testing.T) {
	t.Parallel()

	t.Run("api event keeps its action", func(t *testing.T) {
		t.Parallel()

		ev := entitlement.NewAPIEvent(uuid.New(), entitlement.ActionCancel, t0)
		data, err := entitlement.EncodeEvent(ev)
		require.NoError(t, err)

		decoded, err := entitlement.DecodeEvent(data)
		require.NoError(t, err)

		api, ok := decoded.(entitlement.APIEvent)
		require.True(t, ok)
		assert.Equal(t, ev.EventID, api.ID())
		assert.Equal(t, entitlement.ActionCancel, api.Action)
		assert.Equal(t, entitlement.KindAPI, api.Kind())
		assert.True(t, ev.RequestedAt.Equal(api.RequestedAt))
	})

	t.Run("phase event keeps plan and phase", func(t *testing.T) {
		t.Parallel()

		ev := entitlement.NewPhaseEvent(uuid.New(), entitlement.TimedPhase{Plan: "trial-30", Phase: "evergreen", EffectiveAt: t0})
		data, err := entitlement.EncodeEvent(ev)
		require.NoError(t, err)

		decoded, err := entitlement.DecodeEvent(data)
		require.NoError(t, err)

		phase, ok := decoded.(entitlement.PhaseEvent)
		require.True(t, ok)
		assert.Equal(t, "evergreen", phase.Phase)
		assert.Equal(t, ev.Subscription(), phase.Subscription())
		assert.True(t, phase.Effective().Equal(t0))
	})

	t.Run("rejects unknown kind and action", func(t *testing.T) {
		t.Parallel()

		sub := uuid.New().String()
		_, err := entitlement.DecodeEvent([]byte(`{"kind":"billing","subscription_id":"` + sub + `"}`))
		assert.ErrorIs(t, err, entitlement.ErrUnknownEventKind)

		_, err = entitlement.DecodeEvent([]byte(`{"kind":"api","action":"pause","subscription_id":"` + sub + `"}`))
		assert.ErrorIs(t, err, entitlement.ErrUnknownAction)

		_, err = entitlement.DecodeEvent([]byte(`{"kind":"api","action":"create"}`))
		assert.ErrorIs(t, err, entitlement.ErrInvalidEvent)

		_, err = entitlement.DecodeEvent([]byte(`not json`))
		assert.ErrorIs(t, err, entitlement.ErrInvalidEvent)

		_, err = entitlement.EncodeEvent(nil)
		assert.ErrorIs(t, err, entitlement.ErrInvalidEvent)
	})

	t.Run("parse api action", func(t *testing.T) {
		t.Parallel()

		a, err := entitlement.ParseAPIAction("change")
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionChange, a)

		_, err = entitlement.ParseAPIAction("upgrade")
		assert.ErrorIs(t, err, entitlement.ErrUnknownAction)
	})
}
