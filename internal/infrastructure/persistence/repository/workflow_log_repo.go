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

// WorkflowLogRepository implements port.WorkflowLogRepository
type WorkflowLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowLogRepository creates a new audit log repository
func NewWorkflowLogRepository(db *sql.DB, logger *zap.Logger) port.WorkflowLogRepository {
	return &WorkflowLogRepository{
		db:     db,
		logger: logger,
	}
}

// AddLog appends an entry
func (r *WorkflowLogRepository) AddLog(ctx context.Context, log *entity.WorkflowLog) error {
	query := `
		INSERT INTO workflow_logs (
			content_item_id, workflow_id, action, comment, user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		log.ContentItemID,
		log.WorkflowID,
		log.Action,
		log.Comment,
		log.UserID,
		log.Date,
	)
	if err != nil {
		r.logger.Error("Failed to add workflow log",
			zap.Int64("content_item_id", log.ContentItemID),
			zap.String("action", log.Action),
			zap.Error(err))
		return fmt.Errorf("failed to add workflow log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	return nil
}

// DeleteLogs purges the history of an (item, workflow) pair
func (r *WorkflowLogRepository) DeleteLogs(ctx context.Context, contentItemID, workflowID int64) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM workflow_logs WHERE content_item_id = ? AND workflow_id = ?`,
		contentItemID, workflowID,
	)
	if err != nil {
		r.logger.Error("Failed to delete workflow logs",
			zap.Int64("content_item_id", contentItemID),
			zap.Int64("workflow_id", workflowID),
			zap.Error(err))
		return fmt.Errorf("failed to delete workflow logs: %w", err)
	}
	return nil
}

// GetLogs returns entries in insertion order
func (r *WorkflowLogRepository) GetLogs(ctx context.Context, contentItemID, workflowID int64) ([]*entity.WorkflowLog, error) {
	query := `
		SELECT id, content_item_id, workflow_id, action, comment, user_id, created_at
		FROM workflow_logs
		WHERE content_item_id = ? AND workflow_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, contentItemID, workflowID)
	if err != nil {
		r.logger.Error("Failed to get workflow logs", zap.Int64("content_item_id", contentItemID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.WorkflowLog
	for rows.Next() {
		var l entity.WorkflowLog
		err := rows.Scan(
			&l.ID,
			&l.ContentItemID,
			&l.WorkflowID,
			&l.Action,
			&l.Comment,
			&l.UserID,
			&l.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}

var _ port.WorkflowLogRepository = (*WorkflowLogRepository)(nil)
