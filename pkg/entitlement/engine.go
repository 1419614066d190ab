package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/async"
	"github.com/dmitrymomot/entitlement/pkg/catalog"
	"github.com/dmitrymomot/entitlement/pkg/keylock"
	"github.com/dmitrymomot/entitlement/pkg/logger"
	"github.com/dmitrymomot/entitlement/pkg/statemachine"
)

// ServiceName identifies the engine in logs and health reports.
const ServiceName = "entitlement-service"

// Engine classifies ready events, notifies listeners and schedules the next
// time-driven phase of each subscription. Processing for one subscription is
// serialized through a keylock.Locker; different subscriptions run in parallel.
type Engine struct {
	store       Store
	transitions TransitionWriter
	source      NotificationSource
	catalogs    catalog.Provider
	aligner     PlanAligner

	log             *slog.Logger
	clock           Clock
	metrics         Metrics
	locker          keylock.Locker
	listenerTimeout time.Duration
	lockTimeout     time.Duration

	machine   *statemachine.Machine
	catalog   atomic.Pointer[catalog.Catalog]
	listeners atomic.Pointer[[]Listener]
}

// NewEngine wires an engine in the Created state. It panics on nil
// collaborators. A store that also implements TransitionWriter records phase
// transitions; WithTransitionWriter sets one explicitly.
func NewEngine(store Store, source NotificationSource, catalogs catalog.Provider, aligner PlanAligner, opts ...Option) *Engine {
	if store == nil {
		panic("entitlement: store is required")
	}
	if source == nil {
		panic("entitlement: notification source is required")
	}
	if catalogs == nil {
		panic("entitlement: catalog provider is required")
	}
	if aligner == nil {
		panic("entitlement: plan aligner is required")
	}

	e := &Engine{
		store:           store,
		source:          source,
		catalogs:        catalogs,
		aligner:         aligner,
		log:             slog.Default(),
		clock:           SystemClock,
		metrics:         NopMetrics{},
		locker:          keylock.NewMemoryLocker(),
		listenerTimeout: 5 * time.Second,
		lockTimeout:     30 * time.Second,
	}
	if tw, ok := store.(TransitionWriter); ok {
		e.transitions = tw
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logger.Component(ServiceName))
	e.machine = e.newLifecycle()
	e.listeners.Store(&[]Listener{})

	return e
}

// Name returns ServiceName.
func (e *Engine) Name() string { return ServiceName }

// State returns the lifecycle state. It blocks while a lifecycle call runs.
func (e *Engine) State() LifecycleState {
	return LifecycleState(e.machine.Current().Name())
}

// Catalog returns the catalog loaded by Initialize, or nil before it.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog.Load()
}

// Initialize loads and validates the catalog and primes the aligner.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.fire(ctx, eventInitialize); err != nil {
		return err
	}
	cat := e.catalog.Load()
	e.log.InfoContext(ctx, "engine initialized",
		slog.String("catalog", cat.Name),
		slog.Int("plans", len(cat.Plans)),
	)
	return nil
}

// Start subscribes the engine to its notification source.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.fire(ctx, eventStart); err != nil {
		return err
	}
	e.log.InfoContext(ctx, "engine started", slog.Int("listeners", len(e.Listeners())))
	return nil
}

// Stop unsubscribes from the notification source. Events already being
// processed are not interrupted.
func (e *Engine) Stop(ctx context.Context) error {
	if err := e.fire(ctx, eventStop); err != nil {
		return err
	}
	e.log.InfoContext(ctx, "engine stopped")
	return nil
}

// RegisterListeners replaces the listener set. Nil entries are ignored.
// In-flight dispatches keep the set they started with.
func (e *Engine) RegisterListeners(listeners ...Listener) {
	set := make([]Listener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			set = append(set, l)
		}
	}
	e.listeners.Store(&set)
}

// Listeners returns a copy of the registered listeners.
func (e *Engine) Listeners() []Listener {
	return slices.Clone(*e.listeners.Load())
}

// ProcessEventReady handles one delivered event. It returns nil for every
// outcome the event cannot be retried out of (no listeners, unknown or
// cancelled subscription, stale phase event, terminal plan, phase already
// scheduled) and an error only for store, alignment or lock failures the
// source should redeliver on.
//
// A phase event is first recorded as a TransitionPhase, which is the
// transition its listeners receive.
func (e *Engine) ProcessEventReady(ctx context.Context, event Event) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if e.catalog.Load() == nil {
		return ErrNotInitialized
	}

	listeners := *e.listeners.Load()
	if len(listeners) == 0 {
		e.metrics.EventDropped(DropNoListeners)
		e.log.DebugContext(ctx, "no listeners registered, event ignored", logger.EventID(event.ID()))
		return nil
	}

	began := time.Now()
	ctx = logger.WithSubscriptionID(ctx, event.Subscription())
	log := e.log.With(logger.EventID(event.ID()), logger.EventKind(string(event.Kind())))

	unlock, err := e.lock(ctx, event.Subscription())
	if err != nil {
		return err
	}
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, event.Subscription())
	if errors.Is(err, ErrSubscriptionNotFound) {
		e.metrics.EventDropped(DropNotFound)
		log.WarnContext(ctx, "subscription not found, event dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get subscription %s: %w", event.Subscription(), err)
	}

	latest, ok := sub.LatestTransition()
	if !ok {
		e.metrics.EventDropped(DropNoTransitions)
		log.WarnContext(ctx, "subscription has no transitions, event dropped")
		return nil
	}

	switch ev := event.(type) {
	case APIEvent:
		cb, ok := apiCallback(ev.Action)
		if !ok {
			e.metrics.EventDropped(DropUnknownAction)
			log.DebugContext(ctx, "unmapped api action ignored", logger.Action(string(ev.Action)))
			return nil
		}
		e.dispatch(ctx, log, listeners, cb, latest)

	case PhaseEvent:
		attrs := []any{logger.Plan(ev.Plan), logger.Phase(ev.Phase), logger.EffectiveAt(ev.EffectiveAt)}
		if !sub.IsActive() {
			e.metrics.EventDropped(DropCancelled)
			log.InfoContext(ctx, "subscription cancelled, phase event dropped", attrs...)
			return nil
		}
		if stalePhaseEvent(sub, latest, ev) {
			e.metrics.EventDropped(DropStalePhase)
			log.InfoContext(ctx, "phase event does not match current plan, dropped", attrs...)
			return nil
		}

		t, err := e.recordPhase(ctx, sub, latest, ev)
		if err != nil {
			return err
		}
		e.dispatch(ctx, log, listeners, phaseChanged, t)
		if err := e.scheduleNextPhase(ctx, log, sub); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %T", ErrUnknownEventKind, event)
	}

	e.metrics.EventProcessed(event.Kind(), time.Since(began))
	log.DebugContext(ctx, "event processed", logger.Duration(time.Since(began)))
	return nil
}

// ScheduleNextPhase replaces the pending phase event of a subscription with
// one computed from its current plan. The API layer calls it after every
// create, change or cancel; a cancelled subscription is left with none.
func (e *Engine) ScheduleNextPhase(ctx context.Context, subscriptionID uuid.UUID) error {
	if e.catalog.Load() == nil {
		return ErrNotInitialized
	}

	ctx = logger.WithSubscriptionID(ctx, subscriptionID)
	unlock, err := e.lock(ctx, subscriptionID)
	if err != nil {
		return err
	}
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}

	if err := e.store.CancelNextPhaseEvent(ctx, subscriptionID); err != nil {
		return fmt.Errorf("cancel pending phase of %s: %w", subscriptionID, err)
	}
	if !sub.IsActive() {
		e.metrics.PhaseScheduleSkipped(SkipCancelled)
		e.log.InfoContext(ctx, "subscription cancelled, pending phase event withdrawn")
		return nil
	}
	return e.scheduleNextPhase(ctx, e.log, sub)
}

// stalePhaseEvent reports a phase event scheduled for a plan the
// subscription has since left, or one that predates the latest transition
// without being that transition's redelivery.
func stalePhaseEvent(sub *Subscription, latest Transition, ev PhaseEvent) bool {
	if ev.Plan != sub.CurrentPlan || ev.EffectiveAt.Before(sub.CurrentPlanStart) {
		return true
	}
	return ev.EffectiveAt.Before(latest.EffectiveAt) && ev.Phase != sub.CurrentPhase
}

// recordPhase moves sub to the phase of ev and persists the TransitionPhase.
// When sub is already in that phase, as on redelivery, the latest transition
// is returned and nothing is written.
func (e *Engine) recordPhase(ctx context.Context, sub *Subscription, latest Transition, ev PhaseEvent) (Transition, error) {
	if sub.CurrentPhase == ev.Phase && !latest.EffectiveAt.Before(ev.EffectiveAt) {
		return latest, nil
	}

	t := Transition{
		SubscriptionID: sub.ID,
		Kind:           TransitionPhase,
		PreviousPlan:   sub.CurrentPlan,
		PreviousPhase:  sub.CurrentPhase,
		NextPlan:       ev.Plan,
		NextPhase:      ev.Phase,
		EffectiveAt:    ev.EffectiveAt,
		RequestedAt:    e.clock.Now(),
	}
	if err := sub.AppendTransition(t); err != nil {
		return Transition{}, err
	}
	if e.transitions != nil {
		if err := e.transitions.AppendTransition(ctx, sub.ID, t); err != nil {
			return Transition{}, fmt.Errorf("record phase %q of %s: %w", ev.Phase, sub.ID, err)
		}
	}
	return t, nil
}

func (e *Engine) lock(ctx context.Context, id uuid.UUID) (keylock.Unlock, error) {
	lockCtx := ctx
	if e.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()
	}

	unlock, err := e.locker.Lock(lockCtx, id.String())
	if err != nil {
		return nil, fmt.Errorf("lock subscription %s: %w", id, err)
	}
	return unlock, nil
}

// scheduleNextPhase asks the aligner for the next phase as of the clock's
// now, not the event time, and persists it. The caller holds the lock.
func (e *Engine) scheduleNextPhase(ctx context.Context, log *slog.Logger, sub *Subscription) error {
	now := e.clock.Now()

	next, err := e.aligner.NextTimedPhase(ctx, sub, sub.CurrentPlan, now, sub.CurrentPlanStart)
	if err != nil {
		return fmt.Errorf("align next phase of %s: %w", sub.ID, err)
	}
	if next == nil {
		e.metrics.PhaseScheduleSkipped(SkipTerminal)
		log.DebugContext(ctx, "plan has no further phase", logger.Plan(sub.CurrentPlan))
		return nil
	}

	event := NewPhaseEvent(sub.ID, *next)
	attrs := []any{logger.Plan(next.Plan), logger.Phase(next.Phase), logger.EffectiveAt(next.EffectiveAt)}

	if err := e.store.CreateNextPhaseEvent(ctx, sub.ID, event); err != nil {
		if errors.Is(err, ErrAlreadyScheduled) {
			e.metrics.PhaseScheduleSkipped(SkipAlreadyScheduled)
			log.InfoContext(ctx, "phase event already scheduled", attrs...)
			return nil
		}
		return fmt.Errorf("schedule phase %q of %s: %w", next.Phase, sub.ID, err)
	}

	e.metrics.PhaseScheduled()
	log.InfoContext(ctx, "phase event scheduled", attrs...)
	return nil
}

type callback struct {
	name   string
	invoke func(Listener, context.Context, Transition) error
}

var (
	subscriptionCreated   = callback{"subscription_created", Listener.SubscriptionCreated}
	subscriptionChanged   = callback{"subscription_changed", Listener.SubscriptionChanged}
	subscriptionCancelled = callback{"subscription_cancelled", Listener.SubscriptionCancelled}
	phaseChanged          = callback{"subscription_phase_changed", Listener.SubscriptionPhaseChanged}
)

func apiCallback(action APIAction) (callback, bool) {
	switch action {
	case ActionCreate:
		return subscriptionCreated, true
	case ActionChange:
		return subscriptionChanged, true
	case ActionCancel:
		return subscriptionCancelled, true
	}
	return callback{}, false
}

// dispatch calls cb on every listener in registration order. Failures are
// logged and counted; they do not stop the remaining listeners.
func (e *Engine) dispatch(ctx context.Context, log *slog.Logger, listeners []Listener, cb callback, t Transition) {
	for i, l := range listeners {
		err := e.invoke(ctx, l, cb, t)
		if err == nil {
			continue
		}

		reason := FailureError
		switch {
		case errors.Is(err, async.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			reason = FailureTimeout
		case errors.Is(err, async.ErrPanic):
			reason = FailurePanic
		}

		e.metrics.ListenerFailed(cb.name, reason)
		log.ErrorContext(ctx, "listener failed",
			logger.Listener(i),
			logger.Callback(cb.name),
			logger.Reason(reason),
			logger.Error(err),
		)
	}
}

// invoke runs one callback in a future so panics are recovered and slow
// listeners are abandoned after listenerTimeout.
func (e *Engine) invoke(ctx context.Context, l Listener, cb callback, t Transition) error {
	run := func(ctx context.Context, t Transition) (struct{}, error) {
		return struct{}{}, cb.invoke(l, ctx, t)
	}

	if e.listenerTimeout <= 0 {
		_, err := async.Async(ctx, t, run).Await()
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, e.listenerTimeout)
	defer cancel()

	_, err := async.Async(cctx, t, run).AwaitWithTimeout(e.listenerTimeout)
	return err
}
