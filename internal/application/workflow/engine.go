package workflow

import (
	"context"

	"github.com/garyjia/content-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/content-workflow/internal/domain/workflow"
)

// WorkflowEngine moves content items through their workflow states
type WorkflowEngine interface {
	// StartWorkflow puts the item on the first state of workflowID and resets
	// its audit log. No-op while the item has an active, incomplete workflow.
	StartWorkflow(ctx context.Context, workflowID, contentItemID, userID int64) error

	// CompleteState advances the item to the next state
	CompleteState(ctx context.Context, tx entity.StateTransaction) error

	// DiscardState sends the item back to the previous state
	DiscardState(ctx context.Context, tx entity.StateTransaction) error

	// CompleteWorkflow force-approves the item, skipping reviewer checks
	CompleteWorkflow(ctx context.Context, tx entity.StateTransaction) error

	// DiscardWorkflow force-discards the item, skipping reviewer checks
	DiscardWorkflow(ctx context.Context, tx entity.StateTransaction) error

	IsWorkflowCompleted(ctx context.Context, contentItemID int64) (bool, error)
	IsWorkflowCompletedItem(ctx context.Context, item *entity.ContentItem) (bool, error)
	IsWorkflowOnDraft(ctx context.Context, contentItemID int64) (bool, error)
	IsWorkflowOnDraftItem(ctx context.Context, item *entity.ContentItem) (bool, error)

	// GetStatus describes where the item stands in its workflow
	GetStatus(ctx context.Context, contentItemID int64) (*Status, error)
}

// Status is a read-only view of an item's workflow position
type Status struct {
	Item              *entity.ContentItem   `json:"item"`
	Workflow          *entity.Workflow      `json:"workflow,omitempty"`
	State             *entity.WorkflowState `json:"state,omitempty"`
	Completed         bool                  `json:"completed"`
	OnDraft           bool                  `json:"on_draft"`
	PermittedTriggers []domainwf.Trigger    `json:"permitted_triggers"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
