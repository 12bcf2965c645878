package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/workflow"
)

type mockItemRepo struct {
	CreateFunc  func(ctx context.Context, item *entity.ContentItem) error
	GetByIDFunc func(ctx context.Context, id int64) (*entity.ContentItem, error)
}

func (m *mockItemRepo) Create(ctx context.Context, item *entity.ContentItem) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, item)
	}
	return nil
}

func (m *mockItemRepo) GetByID(ctx context.Context, id int64) (*entity.ContentItem, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockItemRepo) Update(ctx context.Context, item *entity.ContentItem) error { return nil }

func (m *mockItemRepo) UpdateState(ctx context.Context, item *entity.ContentItem, expectedStateID int64) error {
	return nil
}

type mockWorkflowRepo struct {
	GetWorkflowFunc        func(ctx context.Context, id int64) (*entity.Workflow, error)
	GetWorkflowForItemFunc func(ctx context.Context, item *entity.ContentItem) (*entity.Workflow, error)
}

func (m *mockWorkflowRepo) GetWorkflow(ctx context.Context, id int64) (*entity.Workflow, error) {
	if m.GetWorkflowFunc != nil {
		return m.GetWorkflowFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockWorkflowRepo) GetWorkflowForContentItem(ctx context.Context, item *entity.ContentItem) (*entity.Workflow, error) {
	if m.GetWorkflowForItemFunc != nil {
		return m.GetWorkflowForItemFunc(ctx, item)
	}
	return nil, nil
}

type mockLogRepo struct {
	logs []*entity.WorkflowLog
	err  error
}

func (m *mockLogRepo) AddLog(ctx context.Context, log *entity.WorkflowLog) error { return nil }

func (m *mockLogRepo) DeleteLogs(ctx context.Context, contentItemID, workflowID int64) error {
	return nil
}

func (m *mockLogRepo) GetLogs(ctx context.Context, contentItemID, workflowID int64) ([]*entity.WorkflowLog, error) {
	return m.logs, m.err
}

type mockDirectory struct {
	users   map[int64]*entity.User
	lookups int
}

func (m *mockDirectory) GetUserByID(ctx context.Context, portalID, userID int64) (*entity.User, error) {
	m.lookups++
	return m.users[userID], nil
}

func (m *mockDirectory) GetUsersInRole(ctx context.Context, portalID, roleID int64) ([]*entity.User, error) {
	return nil, nil
}

func (m *mockDirectory) GetRoleByID(ctx context.Context, portalID, roleID int64) (*entity.Role, error) {
	return nil, nil
}

func (m *mockDirectory) GetRoleByName(ctx context.Context, portalID int64, name string) (*entity.Role, error) {
	return nil, nil
}

func (m *mockDirectory) ListSuperUsers(ctx context.Context) ([]*entity.User, error) { return nil, nil }

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

var exportedAt = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

func historyFixture() (*mockItemRepo, *mockWorkflowRepo, *mockLogRepo, *mockDirectory) {
	item := &entity.ContentItem{ID: 100, Title: "Launch post", StateID: 12}
	wf := &entity.Workflow{ID: 3, Name: "Editorial", States: []*entity.WorkflowState{{ID: 12, WorkflowID: 3, Name: "Review", Order: 2}}}

	items := &mockItemRepo{GetByIDFunc: func(ctx context.Context, id int64) (*entity.ContentItem, error) {
		if id == item.ID {
			return item, nil
		}
		return nil, nil
	}}
	workflows := &mockWorkflowRepo{
		GetWorkflowFunc: func(ctx context.Context, id int64) (*entity.Workflow, error) {
			if id == wf.ID {
				return wf, nil
			}
			return nil, nil
		},
		GetWorkflowForItemFunc: func(ctx context.Context, i *entity.ContentItem) (*entity.Workflow, error) {
			return wf, nil
		},
	}
	logs := &mockLogRepo{logs: []*entity.WorkflowLog{
		{ID: 1, ContentItemID: 100, WorkflowID: 3, Action: "WorkflowStarted", Comment: "Workflow Editorial started", UserID: 5, Date: exportedAt},
		{ID: 2, ContentItemID: 100, WorkflowID: 3, Action: "DraftCompleted", Comment: "Alice submitted", UserID: 5, Date: exportedAt},
		{ID: 3, ContentItemID: 100, WorkflowID: 3, Action: "StateInitiated", Comment: "State Review initiated", UserID: 42, Date: exportedAt},
	}}
	directory := &mockDirectory{users: map[int64]*entity.User{5: {ID: 5, DisplayName: "Alice"}}}
	return items, workflows, logs, directory
}

func TestHistoryService_GetHistory(t *testing.T) {
	items, workflows, logs, directory := historyFixture()
	svc := NewHistoryService(items, workflows, logs, directory, &mockLogger{})

	h, err := svc.GetHistory(context.Background(), 100, entity.NullID)
	require.NoError(t, err)
	assert.Equal(t, "Editorial", h.Workflow.Name)
	require.Len(t, h.Entries, 3)
	assert.Equal(t, "Alice", h.Entries[0].UserName)
	assert.Equal(t, "", h.Entries[2].UserName, "deleted users render without a name")
	assert.Equal(t, 2, directory.lookups, "user names are resolved once per user")

	h, err = svc.GetHistory(context.Background(), 100, 3)
	require.NoError(t, err)
	assert.Len(t, h.Entries, 3)
}

func TestHistoryService_Errors(t *testing.T) {
	items, workflows, logs, directory := historyFixture()
	svc := NewHistoryService(items, workflows, logs, directory, &mockLogger{})

	_, err := svc.GetHistory(context.Background(), 404, entity.NullID)
	assert.ErrorIs(t, err, workflow.ErrContentItemNotFound)

	_, err = svc.GetHistory(context.Background(), 100, 77)
	assert.ErrorIs(t, err, workflow.ErrWorkflowNotFound)

	logs.err = errors.New("disk I/O error")
	_, err = svc.GetHistory(context.Background(), 100, 3)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestExportService_ExportHistory(t *testing.T) {
	items, workflows, logs, directory := historyFixture()
	svc := NewExportService(NewHistoryService(items, workflows, logs, directory, &mockLogger{}), &mockLogger{})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportHistory(context.Background(), 100, entity.NullID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Audit Log"}, f.GetSheetList())

	rows, err := f.GetRows("Audit Log")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Launch post / Editorial"}, rows[0])
	assert.Equal(t, []string{"#", "Date (UTC)", "Action", "User", "Comment"}, rows[1])
	assert.Equal(t, []string{"1", "Tuesday, March 5, 2024 2:07:09 PM", "WorkflowStarted", "Alice", "Workflow Editorial started"}, rows[2])
	assert.Equal(t, "StateInitiated", rows[4][2])
}

func TestExportService_UnknownItem(t *testing.T) {
	items, workflows, logs, directory := historyFixture()
	svc := NewExportService(NewHistoryService(items, workflows, logs, directory, &mockLogger{}), &mockLogger{})

	var buf bytes.Buffer
	err := svc.ExportHistory(context.Background(), 404, entity.NullID, &buf)
	assert.ErrorIs(t, err, workflow.ErrContentItemNotFound)
	assert.Zero(t, buf.Len())
}

func TestContentService_CreateItem(t *testing.T) {
	var created *entity.ContentItem
	items := &mockItemRepo{CreateFunc: func(ctx context.Context, item *entity.ContentItem) error {
		item.ID = 9
		created = item
		return nil
	}}
	svc := NewContentService(items, &mockLogger{})

	item, err := svc.CreateItem(context.Background(), CreateContentRequest{ContentTypeID: 4, Title: "  Launch post ", UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(9), item.ID)
	assert.Equal(t, "Launch post", created.Title)
	assert.Equal(t, entity.NullID, created.StateID, "new items start unmanaged")
	assert.Equal(t, int64(5), created.CreatedByUserID)

	_, err = svc.CreateItem(context.Background(), CreateContentRequest{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
