package action

import (
	"context"

	"github.com/garyjia/content-workflow/internal/application/dispatcher"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/event"
)

// EventAction publishes a workflow.action event so subscribers can react to
// completion or discard without being compiled into the engine.
type EventAction struct {
	actionType entity.ActionType
	dispatcher dispatcher.Dispatcher
}

// NewEventAction creates an action publishing through d
func NewEventAction(actionType entity.ActionType, d dispatcher.Dispatcher) *EventAction {
	return &EventAction{actionType: actionType, dispatcher: d}
}

// DoAction dispatches synchronously so handler errors reach the caller
func (a *EventAction) DoAction(ctx context.Context, item *entity.ContentItem, userID int64) error {
	evt := event.NewEventFromContext(ctx, event.TypeWorkflowAction, item.ID, event.NoWorkflow, map[string]interface{}{
		"action_type":     a.actionType.String(),
		"content_type_id": item.ContentTypeID,
		"state_id":        item.StateID,
		"user_id":         userID,
	})
	return a.dispatcher.Dispatch(ctx, evt)
}

var _ Action = (*EventAction)(nil)
