package port

import (
	"context"
	"time"

	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// WorkflowRepository reads workflow definitions together with their states
type WorkflowRepository interface {
	// GetWorkflow returns nil, nil when id is unknown
	GetWorkflow(ctx context.Context, id int64) (*entity.Workflow, error)

	// GetWorkflowForContentItem returns the workflow owning the item's current
	// state, or nil when the item is unmanaged
	GetWorkflowForContentItem(ctx context.Context, item *entity.ContentItem) (*entity.Workflow, error)
}

// StateRepository looks up single workflow states
type StateRepository interface {
	GetStateByID(ctx context.Context, id int64) (*entity.WorkflowState, error)
}

// ContentItemRepository persists content items
type ContentItemRepository interface {
	Create(ctx context.Context, item *entity.ContentItem) error
	GetByID(ctx context.Context, id int64) (*entity.ContentItem, error)
	Update(ctx context.Context, item *entity.ContentItem) error

	// UpdateState moves the item to item.StateID only if the stored state
	// still equals expectedStateID; otherwise returns workflow.ErrStateConflict
	UpdateState(ctx context.Context, item *entity.ContentItem, expectedStateID int64) error
}

// StatePermissionRepository reads per-state permission rows
type StatePermissionRepository interface {
	GetByState(ctx context.Context, stateID int64) ([]*entity.StatePermission, error)
}

// ReviewerSecurity answers reviewer-rights questions
type ReviewerSecurity interface {
	HasStateReviewerPermission(ctx context.Context, portalID, userID, stateID int64) (bool, error)
}

// UserDirectory resolves users and roles. Lookups return nil, nil for unknown ids.
type UserDirectory interface {
	GetUserByID(ctx context.Context, portalID, userID int64) (*entity.User, error)
	GetUsersInRole(ctx context.Context, portalID, roleID int64) ([]*entity.User, error)
	GetRoleByID(ctx context.Context, portalID, roleID int64) (*entity.Role, error)
	GetRoleByName(ctx context.Context, portalID int64, name string) (*entity.Role, error)
	ListSuperUsers(ctx context.Context) ([]*entity.User, error)
}

// PortalSettingsRepository reads tenant settings
type PortalSettingsRepository interface {
	GetPortalSettings(ctx context.Context, portalID int64) (*entity.PortalSettings, error)
}

// WorkflowLogRepository is the append-only audit store
type WorkflowLogRepository interface {
	AddLog(ctx context.Context, log *entity.WorkflowLog) error
	DeleteLogs(ctx context.Context, contentItemID, workflowID int64) error

	// GetLogs returns entries oldest first
	GetLogs(ctx context.Context, contentItemID, workflowID int64) ([]*entity.WorkflowLog, error)
}

// NotificationRepository stores notifications and their delivery bookkeeping
type NotificationRepository interface {
	NotificationTransport

	// GetPendingDeliveries lists recipients with a Lark open id that have
	// not been pushed or abandoned yet and are not waiting out a retry.
	// Pairs with fewer failed attempts come first.
	GetPendingDeliveries(ctx context.Context, limit int) ([]*entity.PendingDelivery, error)

	// MarkDelivered records a successful push for (notification, user) on channel
	MarkDelivered(ctx context.Context, notificationID, userID int64, channel string) error

	// RecordFailure counts a failed push and hides the pair from
	// GetPendingDeliveries until retryAt
	RecordFailure(ctx context.Context, notificationID, userID int64, channel, reason string, retryAt time.Time) error

	// Abandon stops pushing the pair on channel for good
	Abandon(ctx context.Context, notificationID, userID int64, channel, reason string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
