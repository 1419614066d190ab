// Package entitlement is the event-processing and phase-scheduling core of
// the subscription entitlement service.
//
// An Engine is wired with a Store, a NotificationSource, a catalog.Provider
// and a PlanAligner. Its lifecycle is Created → Initialized → Started →
// Stopped: Initialize loads the catalog and primes the aligner, Start
// subscribes to the notification source and Stop unsubscribes.
//
// For each ready Event the engine:
//
//  1. returns immediately when no listeners are registered;
//  2. takes the subscription's lock;
//  3. loads the subscription, dropping the event with a warning when it is
//     unknown or has no transitions;
//  4. notifies listeners with the latest transition, choosing the callback by
//     event variant and API action;
//  5. for phase events, asks the aligner for the next phase as of now and
//     persists it as a future PhaseEvent.
//
// A subscription has at most one pending phase event. Writers report a second
// one with ErrAlreadyScheduled, which the engine treats as success, so
// redelivered phase events are harmless.
//
// Listener callbacks run with a timeout and panic recovery. Their failures
// are logged and reported through Metrics but never fail the event.
//
//	engine := entitlement.NewEngine(store, source, catalogs, entitlement.NewCatalogAligner(),
//		entitlement.WithLogger(log),
//		entitlement.WithMetrics(metrics),
//	)
//	engine.RegisterListeners(entitlement.NewLogListener(log))
//	if err := engine.Initialize(ctx); err != nil {
//		return err
//	}
//	if err := engine.Start(ctx); err != nil {
//		return err
//	}
//	defer engine.Stop(context.WithoutCancel(ctx))
package entitlement
