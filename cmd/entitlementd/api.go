package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/logger"
)

var (
	errPlanRequired = errors.New("plan is required")
	errIDRequired   = errors.New("subscription id is required")
	errNoCatalog    = errors.New("catalog not loaded")
	errPlanNoPhases = errors.New("plan has no phases")
	errNotActive    = errors.New("subscription is cancelled")
)

type subscriptionWriter interface {
	entitlement.SubscriptionReader
	CreateSubscription(ctx context.Context, sub *entitlement.Subscription) error
	AppendTransition(ctx context.Context, id uuid.UUID, t entitlement.Transition) error
}

type eventEmitter interface {
	Emit(ctx context.Context, ev entitlement.APIEvent) error
}

type phaseScheduler interface {
	ScheduleNextPhase(ctx context.Context, id uuid.UUID) error
	Catalog() *catalog.Catalog
}

// eventRequest is one subscription API call.
type eventRequest struct {
	SubscriptionID uuid.UUID             `json:"subscription_id"`
	BundleID       uuid.UUID             `json:"bundle_id"`
	Action         entitlement.APIAction `json:"action"`
	Plan           string                `json:"plan,omitempty"`
	EffectiveAt    time.Time             `json:"effective_at"`
}

// appliedEvent is the outcome of an accepted API call. PhaseScheduled is
// false when the call was recorded and emitted but replacing the pending
// phase event failed; POST /v1/subscriptions/{id}/schedule retries that step.
type appliedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PhaseScheduled bool      `json:"phase_scheduled"`
}

// subscriptionAPI records subscription changes, then enqueues the matching
// API event and replaces the pending phase event of the subscription.
type subscriptionAPI struct {
	subs    subscriptionWriter
	emitter eventEmitter
	phases  phaseScheduler
	now     func() time.Time
	log     *slog.Logger
}

func (a *subscriptionAPI) Apply(ctx context.Context, req eventRequest) (appliedEvent, error) {
	if req.EffectiveAt.IsZero() {
		req.EffectiveAt = a.now()
	}
	req.EffectiveAt = req.EffectiveAt.UTC()

	var (
		id  uuid.UUID
		err error
	)
	switch req.Action {
	case entitlement.ActionCreate:
		id, err = a.create(ctx, req)
	case entitlement.ActionChange:
		err = a.change(ctx, req)
		id = req.SubscriptionID
	case entitlement.ActionCancel:
		err = a.cancel(ctx, req)
		id = req.SubscriptionID
	default:
		return appliedEvent{}, fmt.Errorf("%w: %q", entitlement.ErrUnknownAction, req.Action)
	}
	if err != nil {
		return appliedEvent{}, err
	}

	if err := a.emitter.Emit(ctx, entitlement.NewAPIEvent(id, req.Action, req.EffectiveAt)); err != nil {
		return appliedEvent{}, err
	}

	// The call is recorded and emitted at this point; failing it would make
	// a client retry of a create conflict with itself.
	res := appliedEvent{SubscriptionID: id, PhaseScheduled: true}
	if err := a.Reschedule(ctx, id); err != nil {
		res.PhaseScheduled = false
		a.log.ErrorContext(ctx, "phase scheduling failed after subscription event",
			logger.SubscriptionID(id),
			logger.Action(string(req.Action)),
			logger.Error(err))
	}

	a.log.InfoContext(ctx, "subscription event accepted",
		logger.SubscriptionID(id),
		logger.Action(string(req.Action)),
		logger.Plan(req.Plan),
		logger.EffectiveAt(req.EffectiveAt))
	return res, nil
}

// Reschedule replaces the pending phase event of a subscription. It is
// idempotent and safe to retry.
func (a *subscriptionAPI) Reschedule(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errIDRequired
	}
	if err := a.phases.ScheduleNextPhase(ctx, id); err != nil {
		return fmt.Errorf("schedule next phase: %w", err)
	}
	return nil
}

func (a *subscriptionAPI) firstPhase(name string) (catalog.Phase, error) {
	if name == "" {
		return catalog.Phase{}, errPlanRequired
	}
	cat := a.phases.Catalog()
	if cat == nil {
		return catalog.Phase{}, errNoCatalog
	}
	plan, ok := cat.Plan(name)
	if !ok {
		return catalog.Phase{}, fmt.Errorf("%w: %q", entitlement.ErrPlanNotFound, name)
	}
	phase, ok := plan.FirstPhase()
	if !ok {
		return catalog.Phase{}, fmt.Errorf("%w: %q", errPlanNoPhases, name)
	}
	return phase, nil
}

func (a *subscriptionAPI) create(ctx context.Context, req eventRequest) (uuid.UUID, error) {
	phase, err := a.firstPhase(req.Plan)
	if err != nil {
		return uuid.Nil, err
	}

	id := req.SubscriptionID
	if id == uuid.Nil {
		id = uuid.New()
	}
	sub := &entitlement.Subscription{ID: id, BundleID: req.BundleID, Category: "base"}
	if err := sub.AppendTransition(entitlement.Transition{
		Kind:        entitlement.TransitionCreate,
		NextPlan:    req.Plan,
		NextPhase:   phase.Name,
		EffectiveAt: req.EffectiveAt,
		RequestedAt: a.now(),
	}); err != nil {
		return uuid.Nil, err
	}
	if err := a.subs.CreateSubscription(ctx, sub); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (a *subscriptionAPI) change(ctx context.Context, req eventRequest) error {
	sub, err := a.current(ctx, req.SubscriptionID)
	if err != nil {
		return err
	}
	phase, err := a.firstPhase(req.Plan)
	if err != nil {
		return err
	}
	return a.subs.AppendTransition(ctx, sub.ID, entitlement.Transition{
		Kind:          entitlement.TransitionChange,
		PreviousPlan:  sub.CurrentPlan,
		PreviousPhase: sub.CurrentPhase,
		NextPlan:      req.Plan,
		NextPhase:     phase.Name,
		EffectiveAt:   req.EffectiveAt,
		RequestedAt:   a.now(),
	})
}

func (a *subscriptionAPI) cancel(ctx context.Context, req eventRequest) error {
	sub, err := a.current(ctx, req.SubscriptionID)
	if err != nil {
		return err
	}
	return a.subs.AppendTransition(ctx, sub.ID, entitlement.Transition{
		Kind:          entitlement.TransitionCancel,
		PreviousPlan:  sub.CurrentPlan,
		PreviousPhase: sub.CurrentPhase,
		NextPlan:      sub.CurrentPlan,
		EffectiveAt:   req.EffectiveAt,
		RequestedAt:   a.now(),
	})
}

func (a *subscriptionAPI) current(ctx context.Context, id uuid.UUID) (*entitlement.Subscription, error) {
	if id == uuid.Nil {
		return nil, errIDRequired
	}
	sub, err := a.subs.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() {
		return nil, fmt.Errorf("%w: %s", errNotActive, id)
	}
	return sub, nil
}
