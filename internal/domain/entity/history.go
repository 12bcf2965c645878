package entity

import "time"

// WorkflowLog is an immutable audit record for a (content item, workflow) pair
type WorkflowLog struct {
	ID            int64     `json:"id"`
	ContentItemID int64     `json:"content_item_id"`
	WorkflowID    int64     `json:"workflow_id"`
	Action        string    `json:"action"`
	Comment       string    `json:"comment"`
	UserID        int64     `json:"user_id"`
	Date          time.Time `json:"date"`
}

// StatePermission grants a role or a user access to a workflow state
type StatePermission struct {
	ID          int64 `json:"id"`
	StateID     int64 `json:"state_id"`
	RoleID      int64 `json:"role_id"`
	UserID      int64 `json:"user_id"`
	AllowAccess bool  `json:"allow_access"`
}

// IsRole reports whether the permission names a role
func (p *StatePermission) IsRole() bool {
	return p.RoleID > NullID
}

// IsUser reports whether the permission names a user
func (p *StatePermission) IsUser() bool {
	return p.UserID > NullID
}
