// Package recipient computes the notification audience of a workflow state.
package recipient

import (
	"context"
	"fmt"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// Audience is the resolved set of roles and users to notify
type Audience struct {
	Roles []*entity.Role
	Users []*entity.User
}

// IsEmpty reports whether nobody would receive a notification
func (a *Audience) IsEmpty() bool {
	return a == nil || (len(a.Roles) == 0 && len(a.Users) == 0)
}

// Resolver turns state permissions into a notification audience
type Resolver interface {
	// Resolve keeps AllowAccess rows, resolves their roles and users through
	// the directory and, when includeAdmins is set, adds the portal
	// administrator role (matched by exact name) and every superuser.
	// Roles and users are unique by ID. Unknown ids are skipped.
	Resolve(ctx context.Context, settings *entity.PortalSettings, permissions []*entity.StatePermission, includeAdmins bool) (*Audience, error)
}

type resolver struct {
	directory port.UserDirectory
}

// NewResolver creates a recipient resolver
func NewResolver(directory port.UserDirectory) Resolver {
	return &resolver{directory: directory}
}

func (r *resolver) Resolve(ctx context.Context, settings *entity.PortalSettings, permissions []*entity.StatePermission, includeAdmins bool) (*Audience, error) {
	roles, err := r.resolveRoles(ctx, settings, permissions, includeAdmins)
	if err != nil {
		return nil, err
	}

	users, err := r.resolveUsers(ctx, settings, permissions, includeAdmins)
	if err != nil {
		return nil, err
	}

	return &Audience{Roles: roles, Users: users}, nil
}

func (r *resolver) resolveRoles(ctx context.Context, settings *entity.PortalSettings, permissions []*entity.StatePermission, includeAdmins bool) ([]*entity.Role, error) {
	roles := make([]*entity.Role, 0)
	seen := make(map[int64]bool)

	add := func(role *entity.Role) {
		if role == nil || seen[role.ID] {
			return
		}
		seen[role.ID] = true
		roles = append(roles, role)
	}

	for _, p := range permissions {
		if !p.AllowAccess || !p.IsRole() {
			continue
		}
		role, err := r.directory.GetRoleByID(ctx, settings.PortalID, p.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to get role %d: %w", p.RoleID, err)
		}
		add(role)
	}

	if !includeAdmins || hasRoleNamed(roles, settings.AdministratorRoleName) {
		return roles, nil
	}

	admin, err := r.directory.GetRoleByName(ctx, settings.PortalID, settings.AdministratorRoleName)
	if err != nil {
		return nil, fmt.Errorf("failed to get administrator role %q: %w", settings.AdministratorRoleName, err)
	}
	add(admin)

	return roles, nil
}

func (r *resolver) resolveUsers(ctx context.Context, settings *entity.PortalSettings, permissions []*entity.StatePermission, includeAdmins bool) ([]*entity.User, error) {
	users := make([]*entity.User, 0)
	seen := make(map[int64]bool)

	add := func(user *entity.User) {
		if user == nil || seen[user.ID] {
			return
		}
		seen[user.ID] = true
		users = append(users, user)
	}

	for _, p := range permissions {
		if !p.AllowAccess || !p.IsUser() {
			continue
		}
		user, err := r.directory.GetUserByID(ctx, settings.PortalID, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user %d: %w", p.UserID, err)
		}
		add(user)
	}

	if !includeAdmins {
		return users, nil
	}

	superUsers, err := r.directory.ListSuperUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list superusers: %w", err)
	}
	for _, su := range superUsers {
		add(su)
	}

	return users, nil
}

// hasRoleNamed matches names case-sensitively
func hasRoleNamed(roles []*entity.Role, name string) bool {
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	return false
}
