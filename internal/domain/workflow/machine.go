package workflow

import (
	"context"
	"fmt"
	"sort"
)

// Machine tracks one item's position on a Graph
type Machine struct {
	graph   *Graph
	current State
	trail   []Transition
}

func (m *Machine) State() State {
	return m.current
}

// CanFire reports whether trigger has any candidate move from the current
// state. Guards are not evaluated.
func (m *Machine) CanFire(trigger Trigger) bool {
	return len(m.graph.edges[m.current][trigger]) > 0
}

// Fire takes the first candidate move whose guard passes
func (m *Machine) Fire(ctx context.Context, trigger Trigger) (Transition, error) {
	candidates := m.graph.edges[m.current][trigger]
	if len(candidates) == 0 {
		return Transition{}, fmt.Errorf("%w: %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, c := range candidates {
		t := Transition{From: m.current, Trigger: trigger, To: c.to}
		if c.guard != nil && !c.guard(ctx, t) {
			continue
		}
		m.current = c.to
		m.trail = append(m.trail, t)
		return t, nil
	}

	return Transition{}, fmt.Errorf("%w: %s from state %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers lists the triggers with a candidate move, sorted by name
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.graph.edges[m.current]))
	for t := range m.graph.edges[m.current] {
		triggers = append(triggers, t)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}

// Trail returns the transitions taken so far
func (m *Machine) Trail() []Transition {
	return append([]Transition(nil), m.trail...)
}
