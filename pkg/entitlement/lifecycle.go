package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/entitlement/pkg/statemachine"
)

// LifecycleState is the administrative state of an Engine.
type LifecycleState = statemachine.StringState

const (
	StateCreated     LifecycleState = "created"
	StateInitialized LifecycleState = "initialized"
	StateStarted     LifecycleState = "started"
	StateStopped     LifecycleState = "stopped"
)

const (
	eventInitialize statemachine.StringEvent = "initialize"
	eventStart      statemachine.StringEvent = "start"
	eventStop       statemachine.StringEvent = "stop"
)

// newLifecycle wires the one-directional Created→Initialized→Started→Stopped
// machine. Each edge runs its action before the state changes, so a failed
// Initialize leaves the engine in Created and may be retried.
func (e *Engine) newLifecycle() *statemachine.Machine {
	m := statemachine.MustNew(StateCreated)

	edges := []statemachine.Transition{
		{From: StateCreated, To: StateInitialized, Event: eventInitialize, Actions: []statemachine.Action{e.initialize}},
		{From: StateInitialized, To: StateStarted, Event: eventStart, Actions: []statemachine.Action{e.start}},
		{From: StateStarted, To: StateStopped, Event: eventStop, Actions: []statemachine.Action{e.stop}},
	}
	for _, t := range edges {
		if err := m.AddTransition(t); err != nil {
			panic(fmt.Sprintf("entitlement: lifecycle: %v", err))
		}
	}
	return m
}

func (e *Engine) fire(ctx context.Context, ev statemachine.StringEvent) error {
	err := e.machine.Fire(ctx, ev)
	if errors.Is(err, statemachine.ErrNoTransition) {
		return fmt.Errorf("%w: cannot %s from %s", ErrInvalidLifecycle, ev, e.machine.Current().Name())
	}
	return err
}

func (e *Engine) initialize(ctx context.Context, _, _ statemachine.State, _ statemachine.Event) error {
	cat, err := e.catalogs.Catalog(ctx)
	if err != nil {
		return errors.Join(ErrCatalogLoad, err)
	}
	if err := cat.Validate(); err != nil {
		return errors.Join(ErrCatalogLoad, err)
	}
	if err := e.aligner.Prime(cat); err != nil {
		return fmt.Errorf("prime plan aligner: %w", err)
	}
	e.catalog.Store(cat.Clone())
	return nil
}

func (e *Engine) start(ctx context.Context, _, _ statemachine.State, _ statemachine.Event) error {
	if err := e.source.StartNotifications(ctx, e); err != nil {
		return fmt.Errorf("start notifications: %w", err)
	}
	return nil
}

func (e *Engine) stop(ctx context.Context, _, _ statemachine.State, _ statemachine.Event) error {
	if err := e.source.StopNotifications(ctx); err != nil {
		return fmt.Errorf("stop notifications: %w", err)
	}
	return nil
}
