package entity

import "sort"

// Workflow is a portal-scoped ordered approval process
type Workflow struct {
	ID          int64            `json:"id"`
	PortalID    int64            `json:"portal_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	States      []*WorkflowState `json:"states"`
}

// WorkflowState is one named step of a workflow
type WorkflowState struct {
	ID                               int64  `json:"id"`
	WorkflowID                       int64  `json:"workflow_id"`
	Name                             string `json:"name"`
	Order                            int    `json:"order"`
	SendNotification                 bool   `json:"send_notification"`
	SendNotificationToAdministrators bool   `json:"send_notification_to_administrators"`
}

// OrderedStates returns the states sorted by Order. The receiver is not modified.
func (w *Workflow) OrderedStates() []*WorkflowState {
	states := make([]*WorkflowState, len(w.States))
	copy(states, w.States)
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Order < states[j].Order
	})
	return states
}

// FirstState returns the state with the minimum order
func (w *Workflow) FirstState() *WorkflowState {
	states := w.OrderedStates()
	if len(states) == 0 {
		return nil
	}
	return states[0]
}

// LastState returns the state with the maximum order
func (w *Workflow) LastState() *WorkflowState {
	states := w.OrderedStates()
	if len(states) == 0 {
		return nil
	}
	return states[len(states)-1]
}

// HasState reports whether stateID belongs to the workflow
func (w *Workflow) HasState(stateID int64) bool {
	for _, s := range w.States {
		if s.ID == stateID {
			return true
		}
	}
	return false
}

// IsFirstState reports whether stateID is the workflow's first state
func (w *Workflow) IsFirstState(stateID int64) bool {
	first := w.FirstState()
	return first != nil && first.ID == stateID
}

// IsLastState reports whether stateID is the workflow's last state
func (w *Workflow) IsLastState(stateID int64) bool {
	last := w.LastState()
	return last != nil && last.ID == stateID
}

// NextState returns the state following stateID in order.
// Falls back to FirstState when stateID is unknown or already last.
func (w *Workflow) NextState(stateID int64) *WorkflowState {
	states := w.OrderedStates()
	for i, s := range states {
		if s.ID == stateID {
			if i+1 < len(states) {
				return states[i+1]
			}
			break
		}
	}
	return w.FirstState()
}

// PreviousState returns the state preceding stateID in order.
// Falls back to LastState when stateID is unknown or already first.
func (w *Workflow) PreviousState(stateID int64) *WorkflowState {
	states := w.OrderedStates()
	for i, s := range states {
		if s.ID == stateID {
			if i > 0 {
				return states[i-1]
			}
			break
		}
	}
	return w.LastState()
}
