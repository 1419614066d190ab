package entitlement

import "errors"

var (
	// ErrNotInitialized is returned when events arrive before Initialize.
	ErrNotInitialized = errors.New("entitlement: engine not initialized")
	// ErrInvalidLifecycle is returned for out-of-order Initialize, Start or Stop calls.
	ErrInvalidLifecycle = errors.New("entitlement: invalid lifecycle transition")
	// ErrSubscriptionNotFound is returned by a SubscriptionReader for unknown ids.
	ErrSubscriptionNotFound = errors.New("entitlement: subscription not found")
	// ErrSubscriptionExists is returned when creating a subscription whose id is taken.
	ErrSubscriptionExists = errors.New("entitlement: subscription already exists")
	// ErrAlreadyScheduled is returned by a PhaseEventWriter when the subscription
	// already has a pending phase event. The engine treats it as success.
	ErrAlreadyScheduled = errors.New("entitlement: phase event already scheduled")
	// ErrTransitionOutOfOrder is returned when a transition predates the latest one.
	ErrTransitionOutOfOrder = errors.New("entitlement: transition effective before latest transition")
	// ErrCatalogNotPrimed is returned by an aligner used before Prime.
	ErrCatalogNotPrimed = errors.New("entitlement: plan aligner has no catalog")
	// ErrPlanNotFound is returned when a subscription references a plan missing from the catalog.
	ErrPlanNotFound = errors.New("entitlement: plan not found in catalog")
	// ErrUnknownEventKind is returned when decoding an envelope of unknown kind.
	ErrUnknownEventKind = errors.New("entitlement: unknown event kind")
	// ErrUnknownAction is returned when decoding an API event of unknown action.
	ErrUnknownAction = errors.New("entitlement: unknown api action")
	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("entitlement: invalid event")
	// ErrCatalogLoad wraps catalog provider and validation failures during Initialize.
	ErrCatalogLoad = errors.New("entitlement: failed to load catalog")
)
