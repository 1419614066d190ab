package dispatch_test

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
	"github.com/dmitrymomot/entitlement/pkg/delivery"
	"github.com/dmitrymomot/entitlement/pkg/dispatch"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type callbacks struct {
	mu          sync.Mutex
	names       []string
	transitions []entitlement.Transition
}

func (c *callbacks) record(name string) entitlement.TransitionFunc {
	return func(_ context.Context, t entitlement.Transition) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.names = append(c.names, name)
		c.transitions = append(c.transitions, t)
		return nil
	}
}

func (c *callbacks) Transitions() []entitlement.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transitions)
}

func (c *callbacks) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.names)
}

func introCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Name:          "default",
		EffectiveDate: t0,
		Plans: map[string]catalog.Plan{
			"intro-annual": {
				Name:    "intro-annual",
				Product: "pro",
				Phases: []catalog.Phase{
					{Name: "trial", Type: catalog.PhaseTrial, Duration: catalog.Duration{Unit: catalog.UnitDay, Number: 14}},
					{Name: "discount", Type: catalog.PhaseDiscount, Duration: catalog.Duration{Unit: catalog.UnitMonth, Number: 3}},
					{Name: "evergreen", Type: catalog.PhaseEvergreen, Duration: catalog.Duration{Unit: catalog.UnitUnlimited}},
				},
			},
		},
	}
}

func pendingAt(store *delivery.MemoryStorage) []time.Time {
	var out []time.Time
	for _, env := range store.Envelopes() {
		if env.Status == delivery.StatusPending {
			out = append(out, env.DeliverAt)
		}
	}
	return out
}

func TestEngineOverDeliveryQueue(t *testing.T) {
	t.Parallel()

	clk := &clock{t: t0}
	discard := slog.New(slog.DiscardHandler)

	queue := delivery.NewMemoryStorage(delivery.WithStorageClock(clk.Now))
	pub, err := delivery.NewPublisher(queue)
	require.NoError(t, err)
	worker, err := delivery.NewWorker(queue,
		delivery.WithPollInterval(5*time.Millisecond),
		delivery.WithWorkerLogger(discard),
	)
	require.NoError(t, err)

	scheduler, err := dispatch.NewScheduler(pub)
	require.NoError(t, err)
	emitter, err := dispatch.NewEmitter(pub)
	require.NoError(t, err)
	source, err := dispatch.NewSource(worker, dispatch.WithSourceLogger(discard))
	require.NoError(t, err)

	subs := entitlement.NewMemoryStore()
	sub := &entitlement.Subscription{ID: uuid.New(), Category: "base"}
	require.NoError(t, sub.AppendTransition(entitlement.Transition{
		Kind:        entitlement.TransitionCreate,
		NextPlan:    "intro-annual",
		NextPhase:   "trial",
		EffectiveAt: t0,
		RequestedAt: t0,
	}))
	require.NoError(t, subs.PutSubscription(sub))

	engine := entitlement.NewEngine(
		entitlement.ComposeStore(subs, scheduler),
		source,
		catalog.NewMemoryProvider(introCatalog()),
		entitlement.NewCatalogAligner(),
		entitlement.WithClock(entitlement.ClockFunc(clk.Now)),
		entitlement.WithLogger(discard),
		entitlement.WithTransitionWriter(subs),
	)
	rec := &callbacks{}
	engine.RegisterListeners(entitlement.ListenerFuncs{
		Created:      rec.record("created"),
		Changed:      rec.record("changed"),
		Cancelled:    rec.record("cancelled"),
		PhaseChanged: rec.record("phase_changed"),
	})

	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Stop(context.Background()) })

	require.NoError(t, emitter.Emit(ctx, entitlement.NewAPIEvent(sub.ID, entitlement.ActionCreate, t0)))
	require.NoError(t, engine.ScheduleNextPhase(ctx, sub.ID))

	require.Eventually(t, func() bool {
		return slices.Equal(rec.Names(), []string{"created"})
	}, 2*time.Second, 5*time.Millisecond)

	trialEnd := t0.AddDate(0, 0, 14)
	assert.Equal(t, []time.Time{trialEnd}, pendingAt(queue))

	// Scheduling again replaces the pending event with the same boundary.
	require.NoError(t, engine.ScheduleNextPhase(ctx, sub.ID))
	assert.Len(t, pendingAt(queue), 1)

	clk.Set(trialEnd)
	discountEnd := trialEnd.AddDate(0, 3, 0)
	require.Eventually(t, func() bool {
		pending := pendingAt(queue)
		return slices.Equal(rec.Names(), []string{"created", "phase_changed"}) &&
			len(pending) == 1 && pending[0].Equal(discountEnd)
	}, 2*time.Second, 5*time.Millisecond)

	clk.Set(discountEnd)
	require.Eventually(t, func() bool {
		return slices.Equal(rec.Names(), []string{"created", "phase_changed", "phase_changed"}) &&
			len(pendingAt(queue)) == 0
	}, 2*time.Second, 5*time.Millisecond)

	transitions := rec.Transitions()
	require.Len(t, transitions, 3)
	assert.Equal(t, entitlement.TransitionPhase, transitions[1].Kind)
	assert.Equal(t, "trial", transitions[1].PreviousPhase)
	assert.Equal(t, "discount", transitions[1].NextPhase)
	assert.True(t, transitions[1].EffectiveAt.Equal(trialEnd))
	assert.Equal(t, entitlement.TransitionPhase, transitions[2].Kind)
	assert.Equal(t, "evergreen", transitions[2].NextPhase)

	stored, err := subs.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "evergreen", stored.CurrentPhase)
	require.Len(t, stored.Transitions, 3)
	assert.Equal(t, entitlement.TransitionPhase, stored.Transitions[2].Kind)

	assert.Empty(t, queue.DeadLetters())
}
