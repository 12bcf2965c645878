package service

import (
	"context"
	"fmt"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/workflow"
)

// HistoryEntry is an audit log row with the acting user resolved
type HistoryEntry struct {
	*entity.WorkflowLog
	UserName string `json:"user_name"`
}

// History is the audit trail of one (content item, workflow) pair
type History struct {
	ContentItem *entity.ContentItem `json:"content_item"`
	Workflow    *entity.Workflow    `json:"workflow"`
	Entries     []*HistoryEntry     `json:"entries"`
}

// HistoryService reads audit trails
type HistoryService interface {
	// GetHistory returns the trail of contentItemID under workflowID. A
	// workflowID of entity.NullID selects the item's current workflow.
	GetHistory(ctx context.Context, contentItemID, workflowID int64) (*History, error)
}

type historyServiceImpl struct {
	items     port.ContentItemRepository
	workflows port.WorkflowRepository
	logs      port.WorkflowLogRepository
	users     port.UserDirectory
	logger    Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(
	items port.ContentItemRepository,
	workflows port.WorkflowRepository,
	logs port.WorkflowLogRepository,
	users port.UserDirectory,
	logger Logger,
) HistoryService {
	return &historyServiceImpl{
		items:     items,
		workflows: workflows,
		logs:      logs,
		users:     users,
		logger:    logger,
	}
}

func (s *historyServiceImpl) GetHistory(ctx context.Context, contentItemID, workflowID int64) (*History, error) {
	item, err := s.items.GetByID(ctx, contentItemID)
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %d", workflow.ErrContentItemNotFound, contentItemID)
	}

	var wf *entity.Workflow
	if workflowID == entity.NullID {
		wf, err = s.workflows.GetWorkflowForContentItem(ctx, item)
	} else {
		wf, err = s.workflows.GetWorkflow(ctx, workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: content item %d", workflow.ErrWorkflowNotFound, contentItemID)
	}

	logs, err := s.logs.GetLogs(ctx, item.ID, wf.ID)
	if err != nil {
		s.logger.Error("Failed to get workflow logs", "error", err, "content_item_id", item.ID)
		return nil, fmt.Errorf("get logs: %w", err)
	}

	names := make(map[int64]string)
	entries := make([]*HistoryEntry, 0, len(logs))
	for _, l := range logs {
		name, ok := names[l.UserID]
		if !ok {
			name = s.userName(ctx, wf.PortalID, l.UserID)
			names[l.UserID] = name
		}
		entries = append(entries, &HistoryEntry{WorkflowLog: l, UserName: name})
	}

	return &History{ContentItem: item, Workflow: wf, Entries: entries}, nil
}

// userName falls back to an empty name for deleted users
func (s *historyServiceImpl) userName(ctx context.Context, portalID, userID int64) string {
	if userID == entity.NullID {
		return ""
	}
	u, err := s.users.GetUserByID(ctx, portalID, userID)
	if err != nil {
		s.logger.Error("Failed to resolve user", "error", err, "user_id", userID)
		return ""
	}
	if u == nil {
		return ""
	}
	return u.DisplayName
}
