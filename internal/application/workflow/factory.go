package workflow

import (
	"fmt"

	"github.com/garyjia/content-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/content-workflow/internal/domain/workflow"
)

// BuildGraph encodes the move rules of wf.
//
// Complete moves to the next state in order, wrapping to the first state.
// Discard moves to the previous state, wrapping to the last state, and is not
// permitted from the last state. CompleteWorkflow and DiscardWorkflow jump to
// the last state from anywhere.
func BuildGraph(wf *entity.Workflow) (*domainwf.Graph, error) {
	first, last := wf.FirstState(), wf.LastState()
	if first == nil || last == nil {
		return nil, fmt.Errorf("%w: workflow %d has no states", domainwf.ErrStateNotFound, wf.ID)
	}
	lastState := domainwf.State(last.ID)

	g := domainwf.NewGraph()
	for _, s := range wf.OrderedStates() {
		from := domainwf.State(s.ID)
		g.Permit(from, domainwf.TriggerComplete, domainwf.State(wf.NextState(s.ID).ID)).
			Permit(from, domainwf.TriggerCompleteWorkflow, lastState).
			Permit(from, domainwf.TriggerDiscardWorkflow, lastState)
		if from != lastState {
			g.Permit(from, domainwf.TriggerDiscard, domainwf.State(wf.PreviousState(s.ID).ID))
		}
	}
	return g, nil
}

// BuildTransitionMachine positions a machine for wf on currentStateID. A
// state missing from wf completes to the first state and discards to the last.
func BuildTransitionMachine(wf *entity.Workflow, currentStateID int64) (*domainwf.Machine, error) {
	current := domainwf.State(currentStateID)
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: content item is not in a workflow", domainwf.ErrInvalidState)
	}

	g, err := BuildGraph(wf)
	if err != nil {
		return nil, err
	}

	if !g.Knows(current) {
		first, last := domainwf.State(wf.FirstState().ID), domainwf.State(wf.LastState().ID)
		g.Permit(current, domainwf.TriggerComplete, first).
			Permit(current, domainwf.TriggerDiscard, last).
			Permit(current, domainwf.TriggerCompleteWorkflow, last).
			Permit(current, domainwf.TriggerDiscardWorkflow, last)
	}

	return g.At(current)
}
