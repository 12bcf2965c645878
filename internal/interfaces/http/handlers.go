package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/content-workflow/internal/application/service"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/content-workflow/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	api    API
	health HealthFunc
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(api API, logger Logger) *Handlers {
	return &Handlers{api: api, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// CreateItemRequest is the body of POST /api/items
type CreateItemRequest struct {
	ContentTypeID int64  `json:"content_type_id"`
	Title         string `json:"title" binding:"required"`
	UserID        int64  `json:"user_id" binding:"required"`
}

// StartWorkflowRequest is the body of POST /api/workflows/:id/items/:itemId/start
type StartWorkflowRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// TransitionRequest is the body of every state transition endpoint
type TransitionRequest struct {
	CurrentStateID int64  `json:"current_state_id"`
	UserID         int64  `json:"user_id" binding:"required"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	Comment        string `json:"comment"`
}

// LogEntryResponse is one audit log row
type LogEntryResponse struct {
	ID       int64  `json:"id"`
	Action   string `json:"action"`
	Comment  string `json:"comment"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Date     string `json:"date"`
}

// HistoryResponse is the audit log of an item within one workflow
type HistoryResponse struct {
	ContentItemID int64              `json:"content_item_id"`
	WorkflowID    int64              `json:"workflow_id"`
	WorkflowName  string             `json:"workflow_name"`
	Entries       []LogEntryResponse `json:"entries"`
}

type transitionFunc func(c *gin.Context, tx entity.StateTransaction) error

// HealthCheck handles GET /health. Without a health func the process being up is
// all it reports.
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	code := http.StatusOK
	if h.health != nil {
		healthy, components := h.health(c.Request.Context())
		resp.Components = components
		if !healthy {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, Response{Success: code == http.StatusOK, Data: resp})
}

// CreateItem handles POST /api/items
func (h *Handlers) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	item, err := h.api.Content.CreateItem(c.Request.Context(), service.CreateContentRequest{
		ContentTypeID: req.ContentTypeID,
		Title:         req.Title,
		UserID:        req.UserID,
	})
	if err != nil {
		h.writeError(c, "Failed to create content item", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: item})
}

// StartWorkflow handles POST /api/workflows/:id/items/:itemId/start
func (h *Handlers) StartWorkflow(c *gin.Context) {
	workflowID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.int64Param(c, "itemId")
	if !ok {
		return
	}

	var req StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	if err := h.api.Engine.StartWorkflow(c.Request.Context(), workflowID, itemID, req.UserID); err != nil {
		h.writeError(c, "Failed to start workflow", err)
		return
	}

	h.logger.Info("Workflow started", "workflow_id", workflowID, "content_item_id", itemID, "user_id", req.UserID)
	h.respondStatus(c, itemID)
}

// CompleteState handles POST /api/items/:id/complete-state
func (h *Handlers) CompleteState(c *gin.Context) {
	h.transition(c, "complete state", func(c *gin.Context, tx entity.StateTransaction) error {
		return h.api.Engine.CompleteState(c.Request.Context(), tx)
	})
}

// DiscardState handles POST /api/items/:id/discard-state
func (h *Handlers) DiscardState(c *gin.Context) {
	h.transition(c, "discard state", func(c *gin.Context, tx entity.StateTransaction) error {
		return h.api.Engine.DiscardState(c.Request.Context(), tx)
	})
}

// CompleteWorkflow handles POST /api/items/:id/complete-workflow
func (h *Handlers) CompleteWorkflow(c *gin.Context) {
	h.transition(c, "complete workflow", func(c *gin.Context, tx entity.StateTransaction) error {
		return h.api.Engine.CompleteWorkflow(c.Request.Context(), tx)
	})
}

// DiscardWorkflow handles POST /api/items/:id/discard-workflow
func (h *Handlers) DiscardWorkflow(c *gin.Context) {
	h.transition(c, "discard workflow", func(c *gin.Context, tx entity.StateTransaction) error {
		return h.api.Engine.DiscardWorkflow(c.Request.Context(), tx)
	})
}

// GetStatus handles GET /api/items/:id/status
func (h *Handlers) GetStatus(c *gin.Context) {
	itemID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	h.respondStatus(c, itemID)
}

// GetLogs handles GET /api/items/:id/logs?workflow_id=
func (h *Handlers) GetLogs(c *gin.Context) {
	itemID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	workflowID, ok := h.workflowQuery(c)
	if !ok {
		return
	}

	history, err := h.api.History.GetHistory(c.Request.Context(), itemID, workflowID)
	if err != nil {
		h.writeError(c, "Failed to get workflow logs", err)
		return
	}

	resp := HistoryResponse{
		ContentItemID: history.ContentItem.ID,
		WorkflowID:    history.Workflow.ID,
		WorkflowName:  history.Workflow.Name,
		Entries:       make([]LogEntryResponse, 0, len(history.Entries)),
	}
	for _, e := range history.Entries {
		resp.Entries = append(resp.Entries, LogEntryResponse{
			ID:       e.ID,
			Action:   e.Action,
			Comment:  e.Comment,
			UserID:   e.UserID,
			UserName: e.UserName,
			Date:     e.Date.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// ExportLogs handles GET /api/items/:id/logs/export?workflow_id=
func (h *Handlers) ExportLogs(c *gin.Context) {
	itemID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}
	workflowID, ok := h.workflowQuery(c)
	if !ok {
		return
	}

	// Buffered so a failed export can still answer with a JSON error
	var buf bytes.Buffer
	if err := h.api.Export.ExportHistory(c.Request.Context(), itemID, workflowID, &buf); err != nil {
		h.writeError(c, "Failed to export workflow logs", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="item-%d-audit.xlsx"`, itemID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handlers) transition(c *gin.Context, name string, fn transitionFunc) {
	itemID, ok := h.int64Param(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	tx := entity.StateTransaction{
		ContentItemID:  itemID,
		CurrentStateID: req.CurrentStateID,
		UserID:         req.UserID,
		Message: entity.StateTransactionMessage{
			Subject:     req.Subject,
			Body:        req.Body,
			UserComment: req.Comment,
		},
	}
	if err := fn(c, tx); err != nil {
		h.writeError(c, "Failed to "+name, err)
		return
	}

	h.logger.Info("Transition applied", "transition", name, "content_item_id", itemID, "user_id", req.UserID)
	h.respondStatus(c, itemID)
}

func (h *Handlers) respondStatus(c *gin.Context, itemID int64) {
	status, err := h.api.Engine.GetStatus(c.Request.Context(), itemID)
	if err != nil {
		h.writeError(c, "Failed to get workflow status", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

func (h *Handlers) int64Param(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}

// workflowQuery reads workflow_id, defaulting to the item's current workflow
func (h *Handlers) workflowQuery(c *gin.Context) (int64, bool) {
	raw := c.Query("workflow_id")
	if raw == "" {
		return entity.NullID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid workflow_id", err)
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Bad request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) writeError(c *gin.Context, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
		c.JSON(code, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(code, Response{Success: false, Error: err.Error()})
}

// statusFor maps engine and service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrWorkflowNotFound),
		errors.Is(err, domainwf.ErrContentItemNotFound),
		errors.Is(err, domainwf.ErrStateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrGuardFailed),
		errors.Is(err, domainwf.ErrInvalidState),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
