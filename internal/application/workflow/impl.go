package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/content-workflow/internal/application/action"
	"github.com/garyjia/content-workflow/internal/application/audit"
	"github.com/garyjia/content-workflow/internal/application/dispatcher"
	"github.com/garyjia/content-workflow/internal/application/notification"
	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/event"
	domainwf "github.com/garyjia/content-workflow/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	workflows port.WorkflowRepository
	states    port.StateRepository
	items     port.ContentItemRepository
	security  port.ReviewerSecurity
	recorder  audit.Recorder
	notifier  notification.Notifier
	actions   action.Registry
	txManager port.TransactionManager
	logger    Logger

	dispatcher dispatcher.Dispatcher
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting transition events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	workflows port.WorkflowRepository,
	states port.StateRepository,
	items port.ContentItemRepository,
	security port.ReviewerSecurity,
	recorder audit.Recorder,
	notifier notification.Notifier,
	actions action.Registry,
	txManager port.TransactionManager,
	logger Logger,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		workflows: workflows,
		states:    states,
		items:     items,
		security:  security,
		recorder:  recorder,
		notifier:  notifier,
		actions:   actions,
		txManager: txManager,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) StartWorkflow(ctx context.Context, workflowID, contentItemID, userID int64) error {
	item, err := e.loadItem(ctx, contentItemID)
	if err != nil {
		return err
	}

	current, err := e.workflowOf(ctx, item)
	if err != nil {
		return err
	}
	if current != nil && !isCompleted(item, current) {
		e.logger.Info("Workflow already active, start ignored",
			"content_item_id", item.ID,
			"active_workflow_id", current.ID,
			"requested_workflow_id", workflowID,
		)
		return nil
	}

	wf := current
	if wf == nil || wf.ID != workflowID {
		wf, err = e.workflows.GetWorkflow(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("failed to get workflow %d: %w", workflowID, err)
		}
		if wf == nil {
			return fmt.Errorf("%w: %d", domainwf.ErrWorkflowNotFound, workflowID)
		}
	}

	first := wf.FirstState()
	if first == nil {
		return fmt.Errorf("%w: workflow %d has no states", domainwf.ErrStateNotFound, wf.ID)
	}

	err = e.moveItem(ctx, item, first, func(txCtx context.Context) error {
		if err := e.recorder.Reset(txCtx, item.ID, workflowID); err != nil {
			return err
		}
		if err := e.recorder.Record(txCtx, wf, item, nil, entity.LogWorkflowStarted, userID, ""); err != nil {
			return err
		}
		return e.recorder.Record(txCtx, wf, item, nil, entity.LogStateInitiated, userID, "")
	})
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}

	e.logger.Info("Workflow started",
		"content_item_id", item.ID,
		"workflow_id", wf.ID,
		"state_id", first.ID,
		"user_id", userID,
	)
	e.emit(ctx, event.TypeWorkflowStarted, item, wf, map[string]interface{}{
		"to_state_id": first.ID,
		"user_id":     userID,
	})
	return nil
}

func (e *engineImpl) CompleteState(ctx context.Context, tx entity.StateTransaction) error {
	item, err := e.loadItem(ctx, tx.ContentItemID)
	if err != nil {
		return err
	}

	wf, err := e.workflowOf(ctx, item)
	if err != nil {
		return err
	}
	if wf == nil || isCompleted(item, wf) {
		return nil
	}

	if err := e.checkReviewer(ctx, wf, item, tx.UserID); err != nil {
		return err
	}

	outgoing, err := e.checkCurrentState(ctx, item, tx)
	if err != nil {
		return err
	}

	dest, err := e.destination(ctx, wf, item.StateID, domainwf.TriggerComplete)
	if err != nil {
		return err
	}

	leavingDraft := wf.IsFirstState(outgoing.ID)
	approved := wf.IsLastState(dest.ID)

	err = e.moveItem(ctx, item, dest, func(txCtx context.Context) error {
		if err := e.recorder.RecordComment(txCtx, wf, item, outgoing, tx.UserID, tx.Message.UserComment); err != nil {
			return err
		}

		completedType := entity.LogStateCompleted
		if leavingDraft {
			completedType = entity.LogDraftCompleted
		}
		if err := e.recorder.Record(txCtx, wf, item, outgoing, completedType, tx.UserID, ""); err != nil {
			return err
		}

		enteredType := entity.LogStateInitiated
		if approved {
			enteredType = entity.LogWorkflowApproved
		}
		return e.recorder.Record(txCtx, wf, item, dest, enteredType, tx.UserID, "")
	})
	if err != nil {
		return fmt.Errorf("failed to complete state: %w", err)
	}

	if approved {
		e.runAction(ctx, item, entity.ActionCompleteWorkflow, tx.UserID)
		e.notifyAuthor(ctx, wf, item, tx)
	} else {
		e.notifyReviewers(ctx, wf, item, dest, tx)
	}
	e.retract(ctx, item, outgoing)

	e.logger.Info("State completed",
		"content_item_id", item.ID,
		"workflow_id", wf.ID,
		"from_state_id", outgoing.ID,
		"to_state_id", dest.ID,
		"user_id", tx.UserID,
	)
	e.emitTransition(ctx, event.TypeStateCompleted, item, wf, outgoing, dest, tx.UserID)
	if approved {
		e.emitTransition(ctx, event.TypeWorkflowCompleted, item, wf, outgoing, dest, tx.UserID)
	}
	return nil
}

func (e *engineImpl) DiscardState(ctx context.Context, tx entity.StateTransaction) error {
	item, err := e.loadItem(ctx, tx.ContentItemID)
	if err != nil {
		return err
	}

	wf, err := e.workflowOf(ctx, item)
	if err != nil {
		return err
	}
	if wf == nil {
		return nil
	}

	if err := e.checkReviewer(ctx, wf, item, tx.UserID); err != nil {
		return err
	}

	outgoing, err := e.checkCurrentState(ctx, item, tx)
	if err != nil {
		return err
	}

	dest, err := e.destination(ctx, wf, item.StateID, domainwf.TriggerDiscard)
	if err != nil {
		if errors.Is(err, domainwf.ErrInvalidTransition) {
			return fmt.Errorf("%w: cannot discard the last workflow state", err)
		}
		return err
	}

	err = e.moveItem(ctx, item, dest, func(txCtx context.Context) error {
		if err := e.recorder.RecordComment(txCtx, wf, item, outgoing, tx.UserID, tx.Message.UserComment); err != nil {
			return err
		}
		if err := e.recorder.Record(txCtx, wf, item, outgoing, entity.LogStateDiscarded, tx.UserID, ""); err != nil {
			return err
		}
		return e.recorder.Record(txCtx, wf, item, nil, entity.LogStateInitiated, tx.UserID, "")
	})
	if err != nil {
		return fmt.Errorf("failed to discard state: %w", err)
	}

	discarded := wf.IsLastState(dest.ID)
	switch {
	case discarded:
		e.runAction(ctx, item, entity.ActionDiscardWorkflow, tx.UserID)
	case wf.IsFirstState(dest.ID):
		e.notifyAuthor(ctx, wf, item, tx)
	default:
		e.notifyReviewers(ctx, wf, item, dest, tx)
	}
	e.retract(ctx, item, outgoing)

	e.logger.Info("State discarded",
		"content_item_id", item.ID,
		"workflow_id", wf.ID,
		"from_state_id", outgoing.ID,
		"to_state_id", dest.ID,
		"user_id", tx.UserID,
	)
	e.emitTransition(ctx, event.TypeStateDiscarded, item, wf, outgoing, dest, tx.UserID)
	if discarded {
		e.emitTransition(ctx, event.TypeWorkflowDiscarded, item, wf, outgoing, dest, tx.UserID)
	}
	return nil
}

func (e *engineImpl) CompleteWorkflow(ctx context.Context, tx entity.StateTransaction) error {
	return e.force(ctx, tx, domainwf.TriggerCompleteWorkflow, entity.LogWorkflowApproved, entity.ActionCompleteWorkflow, event.TypeWorkflowCompleted)
}

func (e *engineImpl) DiscardWorkflow(ctx context.Context, tx entity.StateTransaction) error {
	return e.force(ctx, tx, domainwf.TriggerDiscardWorkflow, entity.LogWorkflowDiscarded, entity.ActionDiscardWorkflow, event.TypeWorkflowDiscarded)
}

// force jumps straight to the last state. Reviewer rights are not checked.
func (e *engineImpl) force(ctx context.Context, tx entity.StateTransaction, trigger domainwf.Trigger, logType entity.LogType, actionType entity.ActionType, evtType event.Type) error {
	item, err := e.loadItem(ctx, tx.ContentItemID)
	if err != nil {
		return err
	}

	outgoing, err := e.checkCurrentState(ctx, item, tx)
	if err != nil {
		return err
	}

	wf, err := e.workflowOf(ctx, item)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("%w: content item %d has no workflow", domainwf.ErrInvalidTransition, item.ID)
	}

	dest, err := e.destination(ctx, wf, item.StateID, trigger)
	if err != nil {
		return err
	}

	// comment and terminal entries are attributed to the state after the jump
	err = e.moveItem(ctx, item, dest, func(txCtx context.Context) error {
		if err := e.recorder.RecordComment(txCtx, wf, item, nil, tx.UserID, tx.Message.UserComment); err != nil {
			return err
		}
		return e.recorder.Record(txCtx, wf, item, nil, logType, tx.UserID, "")
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", trigger, err)
	}

	e.runAction(ctx, item, actionType, tx.UserID)
	e.retract(ctx, item, outgoing)

	e.logger.Info("Workflow forced to last state",
		"content_item_id", item.ID,
		"workflow_id", wf.ID,
		"trigger", trigger.String(),
		"from_state_id", outgoing.ID,
		"user_id", tx.UserID,
	)
	e.emitTransition(ctx, evtType, item, wf, outgoing, dest, tx.UserID)
	return nil
}

func (e *engineImpl) IsWorkflowCompleted(ctx context.Context, contentItemID int64) (bool, error) {
	item, err := e.loadItem(ctx, contentItemID)
	if err != nil {
		return false, err
	}
	return e.IsWorkflowCompletedItem(ctx, item)
}

func (e *engineImpl) IsWorkflowCompletedItem(ctx context.Context, item *entity.ContentItem) (bool, error) {
	if !item.IsManaged() {
		return true, nil
	}
	wf, err := e.workflowOf(ctx, item)
	if err != nil {
		return false, err
	}
	return isCompleted(item, wf), nil
}

func (e *engineImpl) IsWorkflowOnDraft(ctx context.Context, contentItemID int64) (bool, error) {
	item, err := e.loadItem(ctx, contentItemID)
	if err != nil {
		return false, err
	}
	return e.IsWorkflowOnDraftItem(ctx, item)
}

func (e *engineImpl) IsWorkflowOnDraftItem(ctx context.Context, item *entity.ContentItem) (bool, error) {
	wf, err := e.workflowOf(ctx, item)
	if err != nil {
		return false, err
	}
	if wf == nil {
		return false, nil
	}
	return wf.IsFirstState(item.StateID), nil
}

func (e *engineImpl) GetStatus(ctx context.Context, contentItemID int64) (*Status, error) {
	item, err := e.loadItem(ctx, contentItemID)
	if err != nil {
		return nil, err
	}

	wf, err := e.workflowOf(ctx, item)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Item:              item,
		Workflow:          wf,
		Completed:         isCompleted(item, wf),
		PermittedTriggers: []domainwf.Trigger{},
	}
	if wf == nil {
		return status, nil
	}

	status.OnDraft = wf.IsFirstState(item.StateID)
	for _, s := range wf.States {
		if s.ID == item.StateID {
			status.State = s
		}
	}

	machine, err := BuildTransitionMachine(wf, item.StateID)
	if err != nil {
		return nil, err
	}
	for _, t := range machine.PermittedTriggers() {
		// CompleteState is a no-op on a finished workflow
		if status.Completed && t == domainwf.TriggerComplete {
			continue
		}
		status.PermittedTriggers = append(status.PermittedTriggers, t)
	}

	return status, nil
}

func (e *engineImpl) loadItem(ctx context.Context, id int64) (*entity.ContentItem, error) {
	item, err := e.items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content item %d: %w", id, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrContentItemNotFound, id)
	}
	return item, nil
}

func (e *engineImpl) workflowOf(ctx context.Context, item *entity.ContentItem) (*entity.Workflow, error) {
	wf, err := e.workflows.GetWorkflowForContentItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow for content item %d: %w", item.ID, err)
	}
	return wf, nil
}

// checkReviewer enforces reviewer rights everywhere except the first state
func (e *engineImpl) checkReviewer(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, userID int64) error {
	if wf.IsFirstState(item.StateID) {
		return nil
	}

	ok, err := e.security.HasStateReviewerPermission(ctx, wf.PortalID, userID, item.StateID)
	if err != nil {
		return fmt.Errorf("failed to check reviewer permission: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not a reviewer of state %d", domainwf.ErrPermissionDenied, userID, item.StateID)
	}
	return nil
}

// checkCurrentState compares the declared state with the stored one and
// returns the stored state. The result is nil for an unmanaged item.
func (e *engineImpl) checkCurrentState(ctx context.Context, item *entity.ContentItem, tx entity.StateTransaction) (*entity.WorkflowState, error) {
	if item.StateID != tx.CurrentStateID {
		return nil, fmt.Errorf("%w: content item %d is in state %d, request declared %d",
			domainwf.ErrStateConflict, item.ID, item.StateID, tx.CurrentStateID)
	}
	if !item.IsManaged() {
		return nil, nil
	}

	state, err := e.states.GetStateByID(ctx, item.StateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get state %d: %w", item.StateID, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrStateNotFound, item.StateID)
	}
	return state, nil
}

func (e *engineImpl) destination(ctx context.Context, wf *entity.Workflow, fromStateID int64, trigger domainwf.Trigger) (*entity.WorkflowState, error) {
	machine, err := BuildTransitionMachine(wf, fromStateID)
	if err != nil {
		return nil, err
	}
	move, err := machine.Fire(ctx, trigger)
	if err != nil {
		return nil, err
	}

	for _, s := range wf.States {
		if s.ID == move.To.ID() {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", domainwf.ErrStateNotFound, move.To.ID())
}

// moveItem re-points the item at to and runs record in the same transaction.
// The stored state must still be the one the item was loaded with.
func (e *engineImpl) moveItem(ctx context.Context, item *entity.ContentItem, to *entity.WorkflowState, record func(ctx context.Context) error) error {
	from := item.StateID
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		item.StateID = to.ID
		if err := e.items.UpdateState(txCtx, item, from); err != nil {
			return fmt.Errorf("failed to update content item state: %w", err)
		}
		return record(txCtx)
	})
	if err != nil {
		item.StateID = from
		return err
	}
	return nil
}

func (e *engineImpl) runAction(ctx context.Context, item *entity.ContentItem, actionType entity.ActionType, userID int64) {
	a, ok := e.actions.Lookup(item.ContentTypeID, actionType)
	if !ok {
		return
	}
	if err := a.DoAction(ctx, item, userID); err != nil {
		e.logger.Error("Workflow action failed",
			"content_item_id", item.ID,
			"content_type_id", item.ContentTypeID,
			"action_type", actionType.String(),
			"error", err,
		)
	}
}

func (e *engineImpl) notifyAuthor(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, tx entity.StateTransaction) {
	err := e.notifier.NotifyAuthor(ctx, wf, item, tx)
	if err == nil {
		return
	}
	if errors.Is(err, domainwf.ErrAuthorNotFound) {
		e.logger.Error("Author cannot be found, author notification not sent",
			"content_item_id", item.ID,
			"workflow_id", wf.ID,
		)
		return
	}
	e.logger.Error("Failed to notify author",
		"content_item_id", item.ID,
		"workflow_id", wf.ID,
		"error", err,
	)
}

func (e *engineImpl) notifyReviewers(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, tx entity.StateTransaction) {
	if err := e.notifier.NotifyReviewers(ctx, wf, item, state, tx.Message, tx.UserID); err != nil {
		e.logger.Error("Failed to notify reviewers",
			"content_item_id", item.ID,
			"state_id", state.ID,
			"error", err,
		)
	}
}

func (e *engineImpl) retract(ctx context.Context, item *entity.ContentItem, state *entity.WorkflowState) {
	if state == nil {
		return
	}
	if err := e.notifier.Retract(ctx, item, state); err != nil {
		e.logger.Error("Failed to retract notifications",
			"content_item_id", item.ID,
			"state_id", state.ID,
			"error", err,
		)
	}
}

func (e *engineImpl) emitTransition(ctx context.Context, t event.Type, item *entity.ContentItem, wf *entity.Workflow, from, to *entity.WorkflowState, userID int64) {
	payload := map[string]interface{}{
		"to_state_id": to.ID,
		"user_id":     userID,
	}
	if from != nil {
		payload["from_state_id"] = from.ID
	}
	e.emit(ctx, t, item, wf, payload)
}

func (e *engineImpl) emit(ctx context.Context, t event.Type, item *entity.ContentItem, wf *entity.Workflow, payload map[string]interface{}) {
	if e.dispatcher == nil {
		return
	}
	// handlers outlive the request
	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEventFromContext(ctx, t, item.ID, wf.ID, payload))
}

func isCompleted(item *entity.ContentItem, wf *entity.Workflow) bool {
	return !item.IsManaged() || wf == nil || wf.IsLastState(item.StateID)
}
