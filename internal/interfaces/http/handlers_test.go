package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/content-workflow/internal/application/service"
	"github.com/garyjia/content-workflow/internal/application/workflow"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/event"
	domainwf "github.com/garyjia/content-workflow/internal/domain/workflow"
)

type mockEngine struct {
	StartFunc      func(ctx context.Context, workflowID, itemID, userID int64) error
	TransitionFunc func(op string, tx entity.StateTransaction) error
	StatusFunc     func(ctx context.Context, itemID int64) (*workflow.Status, error)
	lastTx         entity.StateTransaction
	lastOp         string
}

func (m *mockEngine) StartWorkflow(ctx context.Context, workflowID, contentItemID, userID int64) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, workflowID, contentItemID, userID)
	}
	return nil
}

func (m *mockEngine) apply(op string, tx entity.StateTransaction) error {
	m.lastOp = op
	m.lastTx = tx
	if m.TransitionFunc != nil {
		return m.TransitionFunc(op, tx)
	}
	return nil
}

func (m *mockEngine) CompleteState(ctx context.Context, tx entity.StateTransaction) error {
	return m.apply("complete-state", tx)
}

func (m *mockEngine) DiscardState(ctx context.Context, tx entity.StateTransaction) error {
	return m.apply("discard-state", tx)
}

func (m *mockEngine) CompleteWorkflow(ctx context.Context, tx entity.StateTransaction) error {
	return m.apply("complete-workflow", tx)
}

func (m *mockEngine) DiscardWorkflow(ctx context.Context, tx entity.StateTransaction) error {
	return m.apply("discard-workflow", tx)
}

func (m *mockEngine) IsWorkflowCompleted(ctx context.Context, contentItemID int64) (bool, error) {
	return false, nil
}

func (m *mockEngine) IsWorkflowCompletedItem(ctx context.Context, item *entity.ContentItem) (bool, error) {
	return false, nil
}

func (m *mockEngine) IsWorkflowOnDraft(ctx context.Context, contentItemID int64) (bool, error) {
	return false, nil
}

func (m *mockEngine) IsWorkflowOnDraftItem(ctx context.Context, item *entity.ContentItem) (bool, error) {
	return false, nil
}

func (m *mockEngine) GetStatus(ctx context.Context, contentItemID int64) (*workflow.Status, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, contentItemID)
	}
	return &workflow.Status{
		Item:              &entity.ContentItem{ID: contentItemID, StateID: 12},
		PermittedTriggers: []domainwf.Trigger{domainwf.TriggerComplete},
	}, nil
}

type mockContentService struct {
	CreateFunc func(req service.CreateContentRequest) (*entity.ContentItem, error)
}

func (m *mockContentService) CreateItem(ctx context.Context, req service.CreateContentRequest) (*entity.ContentItem, error) {
	return m.CreateFunc(req)
}

func (m *mockContentService) GetItem(ctx context.Context, id int64) (*entity.ContentItem, error) {
	return nil, nil
}

type mockHistoryService struct {
	GetFunc func(itemID, workflowID int64) (*service.History, error)
}

func (m *mockHistoryService) GetHistory(ctx context.Context, itemID, workflowID int64) (*service.History, error) {
	return m.GetFunc(itemID, workflowID)
}

type mockExportService struct {
	ExportFunc func(itemID, workflowID int64, w io.Writer) error
}

func (m *mockExportService) ExportHistory(ctx context.Context, itemID, workflowID int64, w io.Writer) error {
	return m.ExportFunc(itemID, workflowID, w)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type testServer struct {
	engine  *mockEngine
	content *mockContentService
	history *mockHistoryService
	export  *mockExportService
	router  *gin.Engine
}

func newTestServer() *testServer {
	ts := &testServer{
		engine:  &mockEngine{},
		content: &mockContentService{},
		history: &mockHistoryService{},
		export:  &mockExportService{},
	}
	srv := NewServer(DefaultServerConfig(), ts.api(), &mockLogger{})
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) api() API {
	return API{Engine: ts.engine, Content: ts.content, History: ts.history, Export: ts.export}
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestHealthCheck_Components(t *testing.T) {
	ts := newTestServer()
	healthy := false
	check := func(ctx context.Context) (bool, interface{}) {
		return healthy, map[string]string{"database": "ping failed"}
	}
	router := NewServer(DefaultServerConfig(), ts.api(), &mockLogger{}, WithHealthCheck(check)).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
	assert.Contains(t, rec.Body.String(), `"database":"ping failed"`)

	healthy = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestRequestID_EchoesCallerHeader(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestRequestID_BecomesEventCorrelation(t *testing.T) {
	ts := newTestServer()
	var correlation string
	ts.engine.StartFunc = func(ctx context.Context, workflowID, itemID, userID int64) error {
		correlation, _ = event.CorrelationFrom(ctx)
		return nil
	}

	raw, _ := json.Marshal(StartWorkflowRequest{UserID: 5})
	req := httptest.NewRequest(http.MethodPost, "/api/workflows/3/items/100/start", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-7", correlation)
}

func TestCreateItem(t *testing.T) {
	ts := newTestServer()
	ts.content.CreateFunc = func(req service.CreateContentRequest) (*entity.ContentItem, error) {
		if req.Title == "" {
			return nil, service.ErrInvalidInput
		}
		return &entity.ContentItem{ID: 100, Title: req.Title, ContentTypeID: req.ContentTypeID, StateID: entity.NullID}, nil
	}

	rec := ts.do(http.MethodPost, "/api/items", CreateItemRequest{ContentTypeID: 4, Title: "Launch post", UserID: 5})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Launch post"`)

	rec = ts.do(http.MethodPost, "/api/items", map[string]interface{}{"title": "missing user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorkflow(t *testing.T) {
	ts := newTestServer()
	var got [3]int64
	ts.engine.StartFunc = func(ctx context.Context, workflowID, itemID, userID int64) error {
		got = [3]int64{workflowID, itemID, userID}
		if workflowID == 99 {
			return fmt.Errorf("%w: 99", domainwf.ErrWorkflowNotFound)
		}
		return nil
	}

	rec := ts.do(http.MethodPost, "/api/workflows/3/items/100/start", StartWorkflowRequest{UserID: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [3]int64{3, 100, 5}, got)
	assert.Contains(t, rec.Body.String(), `"permitted_triggers":["complete"]`)

	rec = ts.do(http.MethodPost, "/api/workflows/99/items/100/start", StartWorkflowRequest{UserID: 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/workflows/abc/items/100/start", StartWorkflowRequest{UserID: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionEndpoints(t *testing.T) {
	body := TransitionRequest{
		CurrentStateID: 12,
		UserID:         6,
		Subject:        "Review needed",
		Body:           "Please review",
		Comment:        "looks good",
	}

	for _, op := range []string{"complete-state", "discard-state", "complete-workflow", "discard-workflow"} {
		t.Run(op, func(t *testing.T) {
			ts := newTestServer()
			rec := ts.do(http.MethodPost, "/api/items/100/"+op, body)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, op, ts.engine.lastOp)
			assert.Equal(t, entity.StateTransaction{
				ContentItemID:  100,
				CurrentStateID: 12,
				UserID:         6,
				Message: entity.StateTransactionMessage{
					Subject:     "Review needed",
					Body:        "Please review",
					UserComment: "looks good",
				},
			}, ts.engine.lastTx)
		})
	}
}

func TestTransitionErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"permission denied", domainwf.ErrPermissionDenied, http.StatusForbidden},
		{"stale state", fmt.Errorf("wrapped: %w", domainwf.ErrStateConflict), http.StatusConflict},
		{"invalid transition", domainwf.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"guard", domainwf.ErrGuardFailed, http.StatusUnprocessableEntity},
		{"missing item", domainwf.ErrContentItemNotFound, http.StatusNotFound},
		{"missing state", domainwf.ErrStateNotFound, http.StatusNotFound},
		{"storage", errors.New("database is locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.engine.TransitionFunc = func(op string, tx entity.StateTransaction) error { return tt.err }

			rec := ts.do(http.MethodPost, "/api/items/100/complete-state", TransitionRequest{CurrentStateID: 12, UserID: 6})
			assert.Equal(t, tt.code, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	ts := newTestServer()
	ts.engine.TransitionFunc = func(op string, tx entity.StateTransaction) error {
		return errors.New("near \"SELEC\": syntax error")
	}

	rec := ts.do(http.MethodPost, "/api/items/100/discard-state", TransitionRequest{UserID: 6})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec).Error)
}

func TestGetStatus(t *testing.T) {
	ts := newTestServer()
	ts.engine.StatusFunc = func(ctx context.Context, itemID int64) (*workflow.Status, error) {
		if itemID == 404 {
			return nil, domainwf.ErrContentItemNotFound
		}
		return &workflow.Status{
			Item:              &entity.ContentItem{ID: itemID, StateID: 13},
			State:             &entity.WorkflowState{ID: 13, Name: "Approved"},
			Completed:         true,
			PermittedTriggers: []domainwf.Trigger{},
		}, nil
	}

	rec := ts.do(http.MethodGet, "/api/items/100/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completed":true`)

	rec = ts.do(http.MethodGet, "/api/items/404/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLogs(t *testing.T) {
	ts := newTestServer()
	var gotWorkflow int64
	ts.history.GetFunc = func(itemID, workflowID int64) (*service.History, error) {
		gotWorkflow = workflowID
		return &service.History{
			ContentItem: &entity.ContentItem{ID: itemID},
			Workflow:    &entity.Workflow{ID: 3, Name: "Editorial"},
			Entries: []*service.HistoryEntry{{
				WorkflowLog: &entity.WorkflowLog{
					ID:      1,
					Action:  "WorkflowStarted",
					Comment: "Workflow Editorial started by Alice",
					UserID:  5,
					Date:    time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC),
				},
				UserName: "Alice",
			}},
		}, nil
	}

	rec := ts.do(http.MethodGet, "/api/items/100/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.NullID, gotWorkflow)

	var resp struct {
		Data HistoryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Editorial", resp.Data.WorkflowName)
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, "2024-03-05T14:07:09Z", resp.Data.Entries[0].Date)
	assert.Equal(t, "Alice", resp.Data.Entries[0].UserName)

	rec = ts.do(http.MethodGet, "/api/items/100/logs?workflow_id=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), gotWorkflow)

	rec = ts.do(http.MethodGet, "/api/items/100/logs?workflow_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportLogs(t *testing.T) {
	ts := newTestServer()
	ts.export.ExportFunc = func(itemID, workflowID int64, w io.Writer) error {
		if itemID == 404 {
			return domainwf.ErrContentItemNotFound
		}
		_, err := w.Write([]byte("PK-workbook"))
		return err
	}

	rec := ts.do(http.MethodGet, "/api/items/100/logs/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "item-100-audit.xlsx")
	assert.Equal(t, "PK-workbook", rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/items/404/logs/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)
}
