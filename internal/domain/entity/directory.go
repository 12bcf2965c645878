package entity

// User is a directory entry that can act on or be notified about content
type User struct {
	ID          int64  `json:"id"`
	PortalID    int64  `json:"portal_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	LarkOpenID  string `json:"lark_open_id,omitempty"`
	IsSuperUser bool   `json:"is_super_user"`
}

// Role is a portal-scoped group of users
type Role struct {
	ID       int64  `json:"id"`
	PortalID int64  `json:"portal_id"`
	Name     string `json:"name"`
}

// PortalSettings carries the tenant settings the engine needs
type PortalSettings struct {
	PortalID              int64  `json:"portal_id"`
	Name                  string `json:"name"`
	AdministratorRoleName string `json:"administrator_role_name"`
}
