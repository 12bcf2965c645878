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

const userColumns = `id, portal_id, username, display_name, email, lark_open_id, is_superuser`

// DirectoryRepository implements port.UserDirectory and port.PortalSettingsRepository
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new user directory
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// CreateUser inserts a user and sets its id
func (r *DirectoryRepository) CreateUser(ctx context.Context, u *entity.User) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (portal_id, username, display_name, email, lark_open_id, is_superuser)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.PortalID, u.Username, u.DisplayName, u.Email, u.LarkOpenID, u.IsSuperUser)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = id
	return nil
}

// CreateRole inserts a role and sets its id
func (r *DirectoryRepository) CreateRole(ctx context.Context, role *entity.Role) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO roles (portal_id, name) VALUES (?, ?)`, role.PortalID, role.Name)
	if err != nil {
		r.logger.Error("Failed to create role", zap.String("name", role.Name), zap.Error(err))
		return fmt.Errorf("failed to create role: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	role.ID = id
	return nil
}

// AddUserToRole is idempotent
func (r *DirectoryRepository) AddUserToRole(ctx context.Context, userID, roleID int64) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to add user %d to role %d: %w", userID, roleID, err)
	}
	return nil
}

// GetUserByID returns a portal user or a superuser, nil when unknown
func (r *DirectoryRepository) GetUserByID(ctx context.Context, portalID, userID int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND (portal_id = ? OR is_superuser = 1)`

	u, err := scanUser(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, userID, portalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUsersInRole lists role members ordered by id
func (r *DirectoryRepository) GetUsersInRole(ctx context.Context, portalID, roleID int64) ([]*entity.User, error) {
	query := `
		SELECT u.id, u.portal_id, u.username, u.display_name, u.email, u.lark_open_id, u.is_superuser
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ro.id = ? AND ro.portal_id = ?
		ORDER BY u.id
	`
	return r.queryUsers(ctx, query, roleID, portalID)
}

// GetRoleByID returns nil when the role is unknown or belongs to another portal
func (r *DirectoryRepository) GetRoleByID(ctx context.Context, portalID, roleID int64) (*entity.Role, error) {
	return r.getRole(ctx, `SELECT id, portal_id, name FROM roles WHERE id = ? AND portal_id = ?`, roleID, portalID)
}

// GetRoleByName matches the name exactly
func (r *DirectoryRepository) GetRoleByName(ctx context.Context, portalID int64, name string) (*entity.Role, error) {
	return r.getRole(ctx, `SELECT id, portal_id, name FROM roles WHERE portal_id = ? AND name = ?`, portalID, name)
}

// ListSuperUsers returns host-level users across all portals
func (r *DirectoryRepository) ListSuperUsers(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_superuser = 1 ORDER BY id`
	return r.queryUsers(ctx, query)
}

// GetPortalSettings returns nil when the portal is unknown
func (r *DirectoryRepository) GetPortalSettings(ctx context.Context, portalID int64) (*entity.PortalSettings, error) {
	var s entity.PortalSettings
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, administrator_role_name FROM portals WHERE id = ?`, portalID,
	).Scan(&s.PortalID, &s.Name, &s.AdministratorRoleName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get portal settings", zap.Int64("portal_id", portalID), zap.Error(err))
		return nil, fmt.Errorf("failed to get portal settings: %w", err)
	}
	return &s, nil
}

// SavePortalSettings inserts or replaces a portal row
func (r *DirectoryRepository) SavePortalSettings(ctx context.Context, s *entity.PortalSettings) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO portals (id, name, administrator_role_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, administrator_role_name = excluded.administrator_role_name
	`, s.PortalID, s.Name, s.AdministratorRoleName)
	if err != nil {
		return fmt.Errorf("failed to save portal settings: %w", err)
	}
	return nil
}

func (r *DirectoryRepository) getRole(ctx context.Context, query string, args ...interface{}) (*entity.Role, error) {
	var role entity.Role
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&role.ID, &role.PortalID, &role.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get role", zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

func (r *DirectoryRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	if err := row.Scan(&u.ID, &u.PortalID, &u.Username, &u.DisplayName, &u.Email, &u.LarkOpenID, &u.IsSuperUser); err != nil {
		return nil, err
	}
	return &u, nil
}

var (
	_ port.UserDirectory            = (*DirectoryRepository)(nil)
	_ port.PortalSettingsRepository = (*DirectoryRepository)(nil)
)
