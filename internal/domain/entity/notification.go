package entity

import (
	"fmt"
	"time"
)

// Notification is an outbound message addressed to users and roles
type Notification struct {
	ID                   int64     `json:"id"`
	NotificationTypeID   int64     `json:"notification_type_id"`
	Subject              string    `json:"subject"`
	Body                 string    `json:"body"`
	SenderUserID         int64     `json:"sender_user_id"`
	Context              string    `json:"context,omitempty"`
	IncludeDismissAction bool      `json:"include_dismiss_action"`
	CreatedAt            time.Time `json:"created_at"`
}

// NotificationContext builds the key correlating notifications with a
// (content item, workflow, state) triple
func NotificationContext(contentItemID, workflowID, stateID int64) string {
	return fmt.Sprintf("%d:%d:%d", contentItemID, workflowID, stateID)
}

// PendingDelivery is a notification recipient not yet pushed to an external channel
type PendingDelivery struct {
	NotificationID int64  `json:"notification_id"`
	UserID         int64  `json:"user_id"`
	LarkOpenID     string `json:"lark_open_id"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	Attempts       int    `json:"attempts"` // failed pushes so far
}
