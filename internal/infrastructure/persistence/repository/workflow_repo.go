package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/sqlite"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) *WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a workflow and its states, populating their ids
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	result, err := exec.ExecContext(ctx,
		`INSERT INTO workflows (portal_id, name, description) VALUES (?, ?, ?)`,
		wf.PortalID, wf.Name, wf.Description,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.String("name", wf.Name), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	wf.ID = id

	for _, s := range wf.States {
		s.WorkflowID = wf.ID
		result, err := exec.ExecContext(ctx, `
			INSERT INTO workflow_states (
				workflow_id, name, state_order, send_notification, send_notification_to_admins
			) VALUES (?, ?, ?, ?, ?)
		`, s.WorkflowID, s.Name, s.Order, s.SendNotification, s.SendNotificationToAdministrators)
		if err != nil {
			return fmt.Errorf("failed to create state %s: %w", s.Name, err)
		}
		if s.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	return nil
}

// GetWorkflow loads a workflow with its states, nil when unknown
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id int64) (*entity.Workflow, error) {
	query := `SELECT id, portal_id, name, description FROM workflows WHERE id = ?`

	var wf entity.Workflow
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&wf.ID,
		&wf.PortalID,
		&wf.Name,
		&wf.Description,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Int64("workflow_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	states, err := r.getStates(ctx, id)
	if err != nil {
		return nil, err
	}
	wf.States = states

	return &wf, nil
}

// GetWorkflowForContentItem resolves the workflow through the item's current state
func (r *WorkflowRepository) GetWorkflowForContentItem(ctx context.Context, item *entity.ContentItem) (*entity.Workflow, error) {
	if !item.IsManaged() {
		return nil, nil
	}

	var workflowID int64
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT workflow_id FROM workflow_states WHERE id = ?`, item.StateID,
	).Scan(&workflowID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve workflow for content item",
			zap.Int64("content_item_id", item.ID),
			zap.Int64("state_id", item.StateID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to resolve workflow: %w", err)
	}

	return r.GetWorkflow(ctx, workflowID)
}

// List returns every workflow of a portal with its states
func (r *WorkflowRepository) List(ctx context.Context, portalID int64) ([]*entity.Workflow, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT id FROM workflows WHERE portal_id = ? ORDER BY id`, portalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workflow id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	workflows := make([]*entity.Workflow, 0, len(ids))
	for _, id := range ids {
		wf, err := r.GetWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

func (r *WorkflowRepository) getStates(ctx context.Context, workflowID int64) ([]*entity.WorkflowState, error) {
	query := `
		SELECT id, workflow_id, name, state_order, send_notification, send_notification_to_admins
		FROM workflow_states
		WHERE workflow_id = ?
		ORDER BY state_order ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow states: %w", err)
	}
	defer rows.Close()

	var states []*entity.WorkflowState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*entity.WorkflowState, error) {
	var s entity.WorkflowState
	err := row.Scan(
		&s.ID,
		&s.WorkflowID,
		&s.Name,
		&s.Order,
		&s.SendNotification,
		&s.SendNotificationToAdministrators,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow state: %w", err)
	}
	return &s, nil
}

// StateRepository implements port.StateRepository
type StateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *sql.DB, logger *zap.Logger) port.StateRepository {
	return &StateRepository{
		db:     db,
		logger: logger,
	}
}

// GetStateByID retrieves a single state, nil when unknown
func (r *StateRepository) GetStateByID(ctx context.Context, id int64) (*entity.WorkflowState, error) {
	query := `
		SELECT id, workflow_id, name, state_order, send_notification, send_notification_to_admins
		FROM workflow_states
		WHERE id = ?
	`

	s, err := scanState(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get state", zap.Int64("state_id", id), zap.Error(err))
		return nil, err
	}
	return s, nil
}

var (
	_ port.WorkflowRepository = (*WorkflowRepository)(nil)
	_ port.StateRepository    = (*StateRepository)(nil)
)
