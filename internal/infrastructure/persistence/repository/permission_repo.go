package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/sqlite"
)

// StatePermissionRepository implements port.StatePermissionRepository and
// port.ReviewerSecurity
type StatePermissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatePermissionRepository creates a new state permission repository
func NewStatePermissionRepository(db *sql.DB, logger *zap.Logger) *StatePermissionRepository {
	return &StatePermissionRepository{
		db:     db,
		logger: logger,
	}
}

// Grant stores a permission row. Exactly one of RoleID and UserID should be set.
func (r *StatePermissionRepository) Grant(ctx context.Context, p *entity.StatePermission) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_state_permissions (state_id, role_id, user_id, allow_access)
		VALUES (?, ?, ?, ?)
	`, p.StateID, p.RoleID, p.UserID, p.AllowAccess)
	if err != nil {
		r.logger.Error("Failed to grant state permission", zap.Int64("state_id", p.StateID), zap.Error(err))
		return fmt.Errorf("failed to grant state permission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// GetByState returns every permission row of a state
func (r *StatePermissionRepository) GetByState(ctx context.Context, stateID int64) ([]*entity.StatePermission, error) {
	query := `
		SELECT id, state_id, role_id, user_id, allow_access
		FROM workflow_state_permissions
		WHERE state_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, stateID)
	if err != nil {
		r.logger.Error("Failed to get state permissions", zap.Int64("state_id", stateID), zap.Error(err))
		return nil, fmt.Errorf("failed to get state permissions: %w", err)
	}
	defer rows.Close()

	var perms []*entity.StatePermission
	for rows.Next() {
		var p entity.StatePermission
		if err := rows.Scan(&p.ID, &p.StateID, &p.RoleID, &p.UserID, &p.AllowAccess); err != nil {
			return nil, fmt.Errorf("failed to scan state permission: %w", err)
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}

// HasStateReviewerPermission grants superusers, members of the portal
// administrator role, directly allowed users and members of allowed roles
func (r *StatePermissionRepository) HasStateReviewerPermission(ctx context.Context, portalID, userID, stateID int64) (bool, error) {
	query := `
		SELECT
			EXISTS (
				SELECT 1 FROM users WHERE id = ? AND is_superuser = 1
			)
			OR EXISTS (
				SELECT 1
				FROM user_roles ur
				JOIN roles ro ON ro.id = ur.role_id
				JOIN portals po ON po.id = ro.portal_id AND po.administrator_role_name = ro.name
				WHERE ur.user_id = ? AND po.id = ?
			)
			OR EXISTS (
				SELECT 1
				FROM workflow_state_permissions sp
				WHERE sp.state_id = ? AND sp.allow_access = 1
				AND (
					sp.user_id = ?
					OR sp.role_id IN (SELECT role_id FROM user_roles WHERE user_id = ?)
				)
			)
	`

	var allowed bool
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query,
		userID,
		userID, portalID,
		stateID, userID, userID,
	).Scan(&allowed)
	if err != nil {
		r.logger.Error("Failed to check reviewer permission",
			zap.Int64("user_id", userID),
			zap.Int64("state_id", stateID),
			zap.Error(err))
		return false, fmt.Errorf("failed to check reviewer permission: %w", err)
	}
	return allowed, nil
}

var (
	_ port.StatePermissionRepository = (*StatePermissionRepository)(nil)
	_ port.ReviewerSecurity          = (*StatePermissionRepository)(nil)
)
