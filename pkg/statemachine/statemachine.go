package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State is a node of the machine.
type State interface {
	Name() string
}

// Event triggers a transition between states.
type Event interface {
	Name() string
}

// Guard decides at fire time whether a transition may proceed.
type Guard func(ctx context.Context, from State, event Event) bool

// Action runs before the state changes. An error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event) error

// Transition is a single edge: From --Event--> To.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// StringState is a State named by its value.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event named by its value.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }

// Machine is a thread-safe finite state machine.
// Transitions are indexed by [from][event]; the first one whose guards pass wins.
type Machine struct {
	mu          sync.RWMutex
	initial     State
	current     State
	transitions map[string]map[string][]Transition
}

// Option configures a Machine during construction.
type Option func(*Machine) error

// New builds a machine starting in initial.
func New(initial State, opts ...Option) (*Machine, error) {
	if initial == nil {
		return nil, ErrNilState
	}
	m := &Machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[string]map[string][]Transition),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on error. Intended for static machine definitions.
func MustNew(initial State, opts ...Option) *Machine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers from --event--> to.
func WithTransition(from, to State, event Event, guards ...Guard) Option {
	return func(m *Machine) error {
		return m.AddTransition(Transition{From: from, To: to, Event: event, Guards: guards})
	}
}

// AddTransition registers a transition.
func (m *Machine) AddTransition(t Transition) error {
	if t.From == nil || t.To == nil || t.Event == nil {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := t.From.Name()
	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[string][]Transition)
	}
	m.transitions[from][t.Event.Name()] = append(m.transitions[from][t.Event.Name()], t)
	return nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is currently in s.
func (m *Machine) Is(s State) bool {
	return m.Current().Name() == s.Name()
}

// Fire applies event to the current state.
func (m *Machine) Fire(ctx context.Context, event Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.match(ctx, event)
	if err != nil {
		return err
	}

	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, m.current, t.To, event); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = t.To
	return nil
}

// CanFire reports whether Fire would find an allowed transition.
func (m *Machine) CanFire(ctx context.Context, event Event) bool {
	if event == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.match(ctx, event)
	return err == nil
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

// match must be called with mu held.
func (m *Machine) match(ctx context.Context, event Event) (*Transition, error) {
	state, name := m.current.Name(), event.Name()

	candidates := m.transitions[state][name]
	if len(candidates) == 0 {
		return nil, &TransitionError{From: state, Event: name}
	}

	for i := range candidates {
		if guardsPass(ctx, candidates[i], m.current, event) {
			return &candidates[i], nil
		}
	}
	return nil, &TransitionError{From: state, Event: name, Rejected: true}
}

func guardsPass(ctx context.Context, t Transition, from State, event Event) bool {
	for _, g := range t.Guards {
		if g != nil && !g(ctx, from, event) {
			return false
		}
	}
	return true
}
