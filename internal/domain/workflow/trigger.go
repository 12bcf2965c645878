package workflow

// Trigger names a move a content item can make inside its workflow
type Trigger string

const (
	// TriggerComplete advances to the next state
	TriggerComplete Trigger = "complete"
	// TriggerDiscard sends the item back one state
	TriggerDiscard Trigger = "discard"
	// TriggerCompleteWorkflow jumps to the last state as an approval
	TriggerCompleteWorkflow Trigger = "complete_workflow"
	// TriggerDiscardWorkflow jumps to the last state as a rejection
	TriggerDiscardWorkflow Trigger = "discard_workflow"
)

func (t Trigger) String() string {
	return string(t)
}
