package port

import (
	"context"

	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// NotificationTransport sends and retracts notifications
type NotificationTransport interface {
	GetNotificationTypeID(ctx context.Context, name string) (int64, error)

	// Send stores the notification and addresses it to the given roles and users.
	// n.ID is populated on success.
	Send(ctx context.Context, n *entity.Notification, portalID int64, roles []*entity.Role, users []*entity.User) error

	GetByContext(ctx context.Context, typeID int64, context string) ([]*entity.Notification, error)
	DeleteAllRecipients(ctx context.Context, notificationID int64) error
}

// Localizer supplies display strings for audit entries
type Localizer interface {
	// ActionText is stored as the log's Action and matched against stored
	// logs when finding a draft's author, so a value must not change once
	// logs have been written with it
	ActionText(logType entity.LogType) string
	CommentTemplate(logType entity.LogType) string
}

// LarkMessageSender pushes plain text messages to Lark users
type LarkMessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}
