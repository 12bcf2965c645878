package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowStarted   Type = "workflow.started"
	TypeStateCompleted    Type = "state.completed"
	TypeStateDiscarded    Type = "state.discarded"
	TypeWorkflowCompleted Type = "workflow.completed"
	TypeWorkflowDiscarded Type = "workflow.discarded"
	TypeWorkflowAction    Type = "workflow.action"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowStarted,
		TypeStateCompleted,
		TypeStateDiscarded,
		TypeWorkflowCompleted,
		TypeWorkflowDiscarded,
		TypeWorkflowAction:
		return true
	default:
		return false
	}
}

// IsTransition reports whether the event records an item changing state
func (t Type) IsTransition() bool {
	return t.IsValid() && t != TypeWorkflowAction
}
