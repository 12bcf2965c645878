package workflow

import (
	"context"
	"fmt"
)

// Transition is one move of an item between two states
type Transition struct {
	From    State
	Trigger Trigger
	To      State
}

// Guard decides whether a candidate transition may be taken
type Guard func(ctx context.Context, t Transition) bool

type edge struct {
	to    State
	guard Guard
}

// Graph holds the permitted moves between the states of one workflow.
// A Graph is built once and then shared by the machines positioned on it.
type Graph struct {
	edges map[State]map[Trigger][]edge
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{edges: make(map[State]map[Trigger][]edge)}
}

// Permit allows trigger to move an item from one state to another
func (g *Graph) Permit(from State, trigger Trigger, to State) *Graph {
	return g.PermitIf(from, trigger, to, nil)
}

// PermitIf allows the move only when guard passes. Candidates for the same
// (from, trigger) pair are tried in the order they were added.
func (g *Graph) PermitIf(from State, trigger Trigger, to State, guard Guard) *Graph {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("workflow graph: cannot permit %s from %s to %s", trigger, from, to))
	}

	byTrigger, ok := g.edges[from]
	if !ok {
		byTrigger = make(map[Trigger][]edge)
		g.edges[from] = byTrigger
	}
	byTrigger[trigger] = append(byTrigger[trigger], edge{to: to, guard: guard})
	return g
}

// Knows reports whether any move leaves s
func (g *Graph) Knows(s State) bool {
	return len(g.edges[s]) > 0
}

// At positions a new machine on current
func (g *Graph) At(current State) (*Machine, error) {
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: item is not in a workflow", ErrInvalidState)
	}
	return &Machine{graph: g, current: current}, nil
}
