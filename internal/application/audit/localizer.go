package audit

import (
	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

var defaultTemplates = map[entity.LogType]string{
	entity.LogWorkflowStarted:   "Workflow [WORKFLOW] started by [USER] on [DATE]",
	entity.LogStateInitiated:    "State [STATE] initiated on [DATE]",
	entity.LogDraftCompleted:    "[USER] submitted the draft of [CONTENT] on [DATE]",
	entity.LogStateCompleted:    "[USER] completed state [STATE] on [DATE]",
	entity.LogWorkflowApproved:  "[USER] approved [CONTENT] on [DATE]",
	entity.LogStateDiscarded:    "[USER] discarded state [STATE] on [DATE]",
	entity.LogWorkflowDiscarded: "[USER] discarded workflow [WORKFLOW] for [CONTENT] on [DATE]",
	entity.LogCommentProvided:   "[USER] commented: [COMMENT]",
}

// defaultLocalizer ships English strings. Action text is the log type name.
type defaultLocalizer struct {
	overrides map[entity.LogType]string
}

// NewDefaultLocalizer returns the English localizer. overrides replaces
// individual comment templates and may be nil.
func NewDefaultLocalizer(overrides map[entity.LogType]string) port.Localizer {
	return &defaultLocalizer{overrides: overrides}
}

func (l *defaultLocalizer) ActionText(logType entity.LogType) string {
	return logType.String()
}

func (l *defaultLocalizer) CommentTemplate(logType entity.LogType) string {
	if tpl, ok := l.overrides[logType]; ok {
		return tpl
	}
	return defaultTemplates[logType]
}
