// Package statemachine implements a small thread-safe finite state machine.
//
// States and events are anything with a Name; StringState and StringEvent
// cover the common case. Transitions may carry guards (all must pass) and
// actions (run in order before the state changes, an error aborts).
//
//	const (
//		Created     = statemachine.StringState("created")
//		Initialized = statemachine.StringState("initialized")
//		Initialize  = statemachine.StringEvent("initialize")
//	)
//
//	sm := statemachine.MustNew(Created,
//		statemachine.WithTransition(Created, Initialized, Initialize),
//	)
//	if err := sm.Fire(ctx, Initialize); err != nil {
//		// errors.Is(err, statemachine.ErrNoTransition) when fired twice
//	}
//
// The entitlement engine uses it to enforce its one-directional lifecycle.
package statemachine
