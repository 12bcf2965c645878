package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// CreateContentRequest describes a new content item
type CreateContentRequest struct {
	ContentTypeID int64  `json:"content_type_id"`
	Title         string `json:"title" binding:"required"`
	UserID        int64  `json:"user_id"`
}

// ContentService authors content items. New items are unmanaged until a
// workflow is started on them.
type ContentService interface {
	CreateItem(ctx context.Context, req CreateContentRequest) (*entity.ContentItem, error)
	GetItem(ctx context.Context, id int64) (*entity.ContentItem, error)
}

type contentServiceImpl struct {
	items  port.ContentItemRepository
	logger Logger
}

// NewContentService creates a new ContentService
func NewContentService(items port.ContentItemRepository, logger Logger) ContentService {
	return &contentServiceImpl{
		items:  items,
		logger: logger,
	}
}

func (s *contentServiceImpl) CreateItem(ctx context.Context, req CreateContentRequest) (*entity.ContentItem, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	item := &entity.ContentItem{
		ContentTypeID:   req.ContentTypeID,
		Title:           title,
		StateID:         entity.NullID,
		CreatedByUserID: req.UserID,
	}
	if err := s.items.Create(ctx, item); err != nil {
		s.logger.Error("Failed to create content item", "error", err, "title", title)
		return nil, fmt.Errorf("create content item: %w", err)
	}

	s.logger.Info("Content item created", "content_item_id", item.ID, "content_type_id", item.ContentTypeID)
	return item, nil
}

func (s *contentServiceImpl) GetItem(ctx context.Context, id int64) (*entity.ContentItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return item, nil
}
