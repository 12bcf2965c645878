package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// Recorder appends token-substituted entries to the audit log
type Recorder interface {
	// Record appends an entry of logType for item within wf. state is the
	// state rendered into [STATE]; nil means the item's current state.
	Record(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, logType entity.LogType, userID int64, comment string) error

	// RecordComment appends a CommentProvided entry; an empty comment is skipped
	RecordComment(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, userID int64, comment string) error

	// Reset deletes every entry of the (item, workflow) pair
	Reset(ctx context.Context, contentItemID, workflowID int64) error

	// IsAction reports whether a stored entry was written for logType
	IsAction(log *entity.WorkflowLog, logType entity.LogType) bool
}

// Option configures the recorder
type Option func(*recorder)

// WithClock overrides the time source used for [DATE]
func WithClock(now func() time.Time) Option {
	return func(r *recorder) {
		r.now = now
	}
}

type recorder struct {
	logs      port.WorkflowLogRepository
	users     port.UserDirectory
	localizer port.Localizer
	now       func() time.Time
}

// NewRecorder creates an audit recorder
func NewRecorder(logs port.WorkflowLogRepository, users port.UserDirectory, localizer port.Localizer, opts ...Option) Recorder {
	r := &recorder{
		logs:      logs,
		users:     users,
		localizer: localizer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *recorder) Record(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, logType entity.LogType, userID int64, comment string) error {
	if state == nil {
		state = stateOf(wf, item.StateID)
	}

	user, err := r.users.GetUserByID(ctx, wf.PortalID, userID)
	if err != nil {
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	now := r.now().UTC()
	text := ReplaceTokens(r.localizer.CommentTemplate(logType), TokenValues{
		User:     user,
		State:    state,
		Workflow: wf,
		Content:  item,
		Comment:  comment,
		Now:      now,
	})

	log := &entity.WorkflowLog{
		ContentItemID: item.ID,
		WorkflowID:    wf.ID,
		Action:        r.localizer.ActionText(logType),
		Comment:       text,
		UserID:        userID,
		Date:          now,
	}
	if err := r.logs.AddLog(ctx, log); err != nil {
		return fmt.Errorf("failed to add %s log: %w", logType, err)
	}
	return nil
}

func (r *recorder) RecordComment(ctx context.Context, wf *entity.Workflow, item *entity.ContentItem, state *entity.WorkflowState, userID int64, comment string) error {
	if comment == "" {
		return nil
	}
	return r.Record(ctx, wf, item, state, entity.LogCommentProvided, userID, comment)
}

func (r *recorder) Reset(ctx context.Context, contentItemID, workflowID int64) error {
	if err := r.logs.DeleteLogs(ctx, contentItemID, workflowID); err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}
	return nil
}

func (r *recorder) IsAction(log *entity.WorkflowLog, logType entity.LogType) bool {
	return log.Action == r.localizer.ActionText(logType)
}

func stateOf(wf *entity.Workflow, stateID int64) *entity.WorkflowState {
	for _, s := range wf.States {
		if s.ID == stateID {
			return s
		}
	}
	return nil
}
