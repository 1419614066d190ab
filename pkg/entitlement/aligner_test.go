package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

func TestCatalogAligner_NextTimedPhase(t *testing.T) {
	t.Parallel()

	aligner := entitlement.NewCatalogAligner()
	ctx := context.Background()

	_, err := aligner.NextTimedPhase(ctx, nil, "trial-30", t0, t0)
	require.ErrorIs(t, err, entitlement.ErrCatalogNotPrimed)

	require.NoError(t, aligner.Prime(testCatalog()))

	t.Run("trial moves to evergreen at the trial boundary", func(t *testing.T) {
		t.Parallel()

		next, err := aligner.NextTimedPhase(ctx, nil, "trial-30", t0.Add(time.Hour), t0)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "evergreen", next.Phase)
		assert.Equal(t, "trial-30", next.Plan)
		assert.True(t, next.EffectiveAt.Equal(t0.AddDate(0, 0, 30)))
	})

	t.Run("boundary equal to now is already past", func(t *testing.T) {
		t.Parallel()

		next, err := aligner.NextTimedPhase(ctx, nil, "trial-30", t0.AddDate(0, 0, 30), t0)
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("multi phase plan uses cumulative boundaries", func(t *testing.T) {
		t.Parallel()

		now := t0.AddDate(0, 0, 20)
		next, err := aligner.NextTimedPhase(ctx, nil, "intro-annual", now, t0)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "evergreen", next.Phase)
		assert.True(t, next.EffectiveAt.Equal(t0.AddDate(0, 0, 14).AddDate(0, 3, 0)))
	})

	t.Run("single fixed term phase has no successor", func(t *testing.T) {
		t.Parallel()

		next, err := aligner.NextTimedPhase(ctx, nil, "fixed-1y", t0, t0)
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()

		_, err := aligner.NextTimedPhase(ctx, nil, "enterprise", t0, t0)
		assert.ErrorIs(t, err, entitlement.ErrPlanNotFound)
	})
}
