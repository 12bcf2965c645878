// Package notification builds, sends and retracts workflow notifications.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/content-workflow/internal/application/audit"
	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/application/recipient"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/workflow"
)

// Notifier is the notification dispatcher used by the transition engine
type Notifier interface {
	// NotifyReviewers prompts the reviewers of state. Nothing is sent when the
	// state has notifications disabled or the audience is empty.
	NotifyReviewers(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, msg entity.StateTransactionMessage, senderUserID int64) error

	// NotifyAuthor tells the draft submitter about the outcome. Returns
	// workflow.ErrAuthorNotFound when no submitter is recorded; sends nothing
	// when the submitter is the acting user.
	NotifyAuthor(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, tx entity.StateTransaction) error

	// Retract removes every recipient of notifications correlated to state
	Retract(ctx context.Context, item *entity.ContentItem, state *entity.WorkflowState) error

	// FindAuthor returns the user of the most recent DraftCompleted entry
	FindAuthor(ctx context.Context, wf *entity.Workflow, contentItemID int64) (*entity.User, error)
}

type notifier struct {
	transport   port.NotificationTransport
	permissions port.StatePermissionRepository
	portals     port.PortalSettingsRepository
	directory   port.UserDirectory
	logs        port.WorkflowLogRepository
	localizer   port.Localizer
	resolver    recipient.Resolver
}

// NewNotifier creates a notification dispatcher
func NewNotifier(
	transport port.NotificationTransport,
	permissions port.StatePermissionRepository,
	portals port.PortalSettingsRepository,
	directory port.UserDirectory,
	logs port.WorkflowLogRepository,
	localizer port.Localizer,
	resolver recipient.Resolver,
) Notifier {
	return &notifier{
		transport:   transport,
		permissions: permissions,
		portals:     portals,
		directory:   directory,
		logs:        logs,
		localizer:   localizer,
		resolver:    resolver,
	}
}

func (n *notifier) NotifyReviewers(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, msg entity.StateTransactionMessage, senderUserID int64) error {
	if !state.SendNotification {
		return nil
	}

	settings, err := n.portals.GetPortalSettings(ctx, wf.PortalID)
	if err != nil {
		return fmt.Errorf("failed to get portal settings: %w", err)
	}
	if settings == nil {
		settings = &entity.PortalSettings{PortalID: wf.PortalID}
	}

	perms, err := n.permissions.GetByState(ctx, state.ID)
	if err != nil {
		return fmt.Errorf("failed to get permissions for state %d: %w", state.ID, err)
	}

	audience, err := n.resolver.Resolve(ctx, settings, perms, state.SendNotificationToAdministrators)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if audience.IsEmpty() {
		return nil
	}

	typeID, err := n.transport.GetNotificationTypeID(ctx, entity.NotificationTypeWorkflow)
	if err != nil {
		return fmt.Errorf("failed to get notification type: %w", err)
	}

	notif := &entity.Notification{
		NotificationTypeID:   typeID,
		Subject:              msg.Subject,
		Body:                 audit.AttachComment(msg.Body, msg.UserComment),
		SenderUserID:         senderUserID,
		Context:              entity.NotificationContext(item.ID, state.WorkflowID, state.ID),
		IncludeDismissAction: true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := n.transport.Send(ctx, notif, settings.PortalID, audience.Roles, audience.Users); err != nil {
		return fmt.Errorf("failed to send reviewer notification: %w", err)
	}
	return nil
}

func (n *notifier) NotifyAuthor(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, tx entity.StateTransaction) error {
	author, err := n.FindAuthor(ctx, wf, item.ID)
	if err != nil {
		return err
	}
	if author.ID == tx.UserID {
		return nil
	}

	typeID, err := n.transport.GetNotificationTypeID(ctx, entity.NotificationTypeWorkflowNoAction)
	if err != nil {
		return fmt.Errorf("failed to get notification type: %w", err)
	}

	notif := &entity.Notification{
		NotificationTypeID:   typeID,
		Subject:              tx.Message.Subject,
		Body:                 audit.AttachComment(tx.Message.Body, tx.Message.UserComment),
		SenderUserID:         tx.UserID,
		IncludeDismissAction: true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := n.transport.Send(ctx, notif, wf.PortalID, nil, []*entity.User{author}); err != nil {
		return fmt.Errorf("failed to send author notification: %w", err)
	}
	return nil
}

func (n *notifier) FindAuthor(ctx context.Context, wf *entity.Workflow, contentItemID int64) (*entity.User, error) {
	logs, err := n.logs.GetLogs(ctx, contentItemID, wf.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow logs: %w", err)
	}

	draftCompleted := n.localizer.ActionText(entity.LogDraftCompleted)
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		if l.Action != draftCompleted {
			continue
		}
		if l.UserID == entity.NullID {
			break
		}
		user, err := n.directory.GetUserByID(ctx, wf.PortalID, l.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get author %d: %w", l.UserID, err)
		}
		if user == nil {
			break
		}
		return user, nil
	}

	return nil, fmt.Errorf("%w: content item %d", workflow.ErrAuthorNotFound, contentItemID)
}

func (n *notifier) Retract(ctx context.Context, item *entity.ContentItem, state *entity.WorkflowState) error {
	typeID, err := n.transport.GetNotificationTypeID(ctx, entity.NotificationTypeWorkflow)
	if err != nil {
		return fmt.Errorf("failed to get notification type: %w", err)
	}

	key := entity.NotificationContext(item.ID, state.WorkflowID, state.ID)
	notifs, err := n.transport.GetByContext(ctx, typeID, key)
	if err != nil {
		return fmt.Errorf("failed to find notifications for %s: %w", key, err)
	}

	for _, notif := range notifs {
		if err := n.transport.DeleteAllRecipients(ctx, notif.ID); err != nil {
			return fmt.Errorf("failed to retract notification %d: %w", notif.ID, err)
		}
	}
	return nil
}
