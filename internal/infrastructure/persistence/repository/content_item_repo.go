package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/workflow"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/sqlite"
)

// ContentItemRepository implements port.ContentItemRepository
type ContentItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewContentItemRepository creates a new content item repository
func NewContentItemRepository(db *sql.DB, logger *zap.Logger) port.ContentItemRepository {
	return &ContentItemRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a content item. A positive item.ID is kept as the primary key.
func (r *ContentItemRepository) Create(ctx context.Context, item *entity.ContentItem) error {
	item.UpdatedAt = time.Now().UTC()

	var id interface{}
	if item.ID > 0 {
		id = item.ID
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO content_items (id, content_type_id, title, state_id, created_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, item.ContentTypeID, item.Title, item.StateID, item.CreatedByUserID, item.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create content item", zap.String("title", item.Title), zap.Error(err))
		return fmt.Errorf("failed to create content item: %w", err)
	}

	newID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = newID
	return nil
}

// GetByID retrieves a content item, nil when unknown
func (r *ContentItemRepository) GetByID(ctx context.Context, id int64) (*entity.ContentItem, error) {
	query := `
		SELECT id, content_type_id, title, state_id, created_by, updated_at
		FROM content_items
		WHERE id = ?
	`

	var item entity.ContentItem
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.ContentTypeID,
		&item.Title,
		&item.StateID,
		&item.CreatedByUserID,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get content item", zap.Int64("content_item_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}

	return &item, nil
}

// Update overwrites every mutable column of the item
func (r *ContentItemRepository) Update(ctx context.Context, item *entity.ContentItem) error {
	item.UpdatedAt = time.Now().UTC()

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		UPDATE content_items
		SET content_type_id = ?, title = ?, state_id = ?, created_by = ?, updated_at = ?
		WHERE id = ?
	`, item.ContentTypeID, item.Title, item.StateID, item.CreatedByUserID, item.UpdatedAt, item.ID)
	if err != nil {
		r.logger.Error("Failed to update content item", zap.Int64("content_item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to update content item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", workflow.ErrContentItemNotFound, item.ID)
	}
	return nil
}

// UpdateState is a compare-and-swap on state_id
func (r *ContentItemRepository) UpdateState(ctx context.Context, item *entity.ContentItem, expectedStateID int64) error {
	now := time.Now().UTC()

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		UPDATE content_items
		SET state_id = ?, updated_at = ?
		WHERE id = ? AND state_id = ?
	`, item.StateID, now, item.ID, expectedStateID)
	if err != nil {
		r.logger.Error("Failed to update content item state",
			zap.Int64("content_item_id", item.ID),
			zap.Int64("state_id", item.StateID),
			zap.Error(err))
		return fmt.Errorf("failed to update content item state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: content item %d is no longer in state %d",
			workflow.ErrStateConflict, item.ID, expectedStateID)
	}

	item.UpdatedAt = now
	return nil
}

var _ port.ContentItemRepository = (*ContentItemRepository)(nil)
