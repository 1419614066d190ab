package entitlement_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Name:          "default",
		EffectiveDate: t0,
		Plans: map[string]catalog.Plan{
			"trial-30": {
				Name:    "trial-30",
				Product: "pro",
				Phases: []catalog.Phase{
					{Name: "trial", Type: catalog.PhaseTrial, Duration: catalog.Duration{Unit: catalog.UnitDay, Number: 30}},
					{Name: "evergreen", Type: catalog.PhaseEvergreen, Duration: catalog.Duration{Unit: catalog.UnitUnlimited}},
				},
			},
			"intro-annual": {
				Name:    "intro-annual",
				Product: "pro",
				Phases: []catalog.Phase{
					{Name: "trial", Type: catalog.PhaseTrial, Duration: catalog.Duration{Unit: catalog.UnitDay, Number: 14}},
					{Name: "discount", Type: catalog.PhaseDiscount, Duration: catalog.Duration{Unit: catalog.UnitMonth, Number: 3}},
					{Name: "evergreen", Type: catalog.PhaseEvergreen, Duration: catalog.Duration{Unit: catalog.UnitUnlimited}},
				},
			},
			"fixed-1y": {
				Name:    "fixed-1y",
				Product: "pro",
				Phases: []catalog.Phase{
					{Name: "term", Type: catalog.PhaseFixedTerm, Duration: catalog.Duration{Unit: catalog.UnitYear, Number: 1}},
				},
			},
		},
	}
}

// newSubscription returns a subscription on plan created at start.
func newSubscription(plan, phase string, start time.Time) *entitlement.Subscription {
	sub := &entitlement.Subscription{ID: uuid.New(), Category: "base"}
	_ = sub.AppendTransition(entitlement.Transition{
		Kind:        entitlement.TransitionCreate,
		NextPlan:    plan,
		NextPhase:   phase,
		EffectiveAt: start,
		RequestedAt: start,
	})
	return sub
}

type call struct {
	callback   string
	transition entitlement.Transition
}

type recordingListener struct {
	mu    sync.Mutex
	calls []call
}

func (l *recordingListener) record(name string, t entitlement.Transition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call{callback: name, transition: t})
	return nil
}

func (l *recordingListener) SubscriptionCreated(_ context.Context, t entitlement.Transition) error {
	return l.record("created", t)
}

func (l *recordingListener) SubscriptionChanged(_ context.Context, t entitlement.Transition) error {
	return l.record("changed", t)
}

func (l *recordingListener) SubscriptionCancelled(_ context.Context, t entitlement.Transition) error {
	return l.record("cancelled", t)
}

func (l *recordingListener) SubscriptionPhaseChanged(_ context.Context, t entitlement.Transition) error {
	return l.record("phase_changed", t)
}

func (l *recordingListener) Calls() []call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]call(nil), l.calls...)
}

func (l *recordingListener) Callbacks() []string {
	calls := l.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.callback
	}
	return names
}

type mockAligner struct {
	mock.Mock
}

func (m *mockAligner) Prime(cat *catalog.Catalog) error {
	return m.Called(cat).Error(0)
}

func (m *mockAligner) NextTimedPhase(ctx context.Context, sub *entitlement.Subscription, plan string, now, planStart time.Time) (*entitlement.TimedPhase, error) {
	args := m.Called(ctx, sub, plan, now, planStart)
	next, _ := args.Get(0).(*entitlement.TimedPhase)
	return next, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSubscription(ctx context.Context, id uuid.UUID) (*entitlement.Subscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*entitlement.Subscription)
	return sub, args.Error(1)
}

func (m *mockStore) CreateNextPhaseEvent(ctx context.Context, id uuid.UUID, ev entitlement.PhaseEvent) error {
	return m.Called(ctx, id, ev).Error(0)
}

func (m *mockStore) CancelNextPhaseEvent(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) StartNotifications(ctx context.Context, sink entitlement.EventSink) error {
	return m.Called(ctx, sink).Error(0)
}

func (m *mockSource) StopNotifications(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingMetrics struct {
	mu        sync.Mutex
	processed []entitlement.EventKind
	dropped   []string
	failures  []string
	scheduled int
	skipped   []string
}

func (m *recordingMetrics) EventProcessed(kind entitlement.EventKind, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, kind)
}

func (m *recordingMetrics) EventDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, reason)
}

func (m *recordingMetrics) ListenerFailed(callback, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, callback+"/"+reason)
}

func (m *recordingMetrics) PhaseScheduled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled++
}

func (m *recordingMetrics) PhaseScheduleSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = append(m.skipped, reason)
}

func fixedClock(t time.Time) entitlement.Clock {
	return entitlement.ClockFunc(func() time.Time { return t })
}
