package entity

import "time"

// ContentItem is the subject moved through a workflow
type ContentItem struct {
	ID              int64     `json:"id"`
	ContentTypeID   int64     `json:"content_type_id"`
	Title           string    `json:"title"`
	StateID         int64     `json:"state_id"`
	CreatedByUserID int64     `json:"created_by_user_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsManaged reports whether the item points at a workflow state
func (c *ContentItem) IsManaged() bool {
	return c.StateID != NullID
}

// StateTransaction is a caller request to move a content item.
// CurrentStateID is the state the caller last observed and acts as
// an optimistic-concurrency token.
type StateTransaction struct {
	ContentItemID  int64                   `json:"content_item_id"`
	CurrentStateID int64                   `json:"current_state_id"`
	UserID         int64                   `json:"user_id"`
	Message        StateTransactionMessage `json:"message"`
}

// StateTransactionMessage is the payload carried into notifications and logs
type StateTransactionMessage struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	UserComment string `json:"user_comment"`
}
