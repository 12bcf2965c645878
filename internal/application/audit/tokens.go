package audit

import (
	"strings"
	"time"

	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// Supported template tokens
const (
	TokenUser     = "[USER]"
	TokenDate     = "[DATE]"
	TokenState    = "[STATE]"
	TokenWorkflow = "[WORKFLOW]"
	TokenContent  = "[CONTENT]"
	TokenComment  = "[COMMENT]"
)

// DateLayout renders timestamps in long date/time form
const DateLayout = "Monday, January 2, 2006 3:04:05 PM"

// TokenValues carries the entities substituted into a template.
// Nil entities render as empty strings.
type TokenValues struct {
	User     *entity.User
	State    *entity.WorkflowState
	Workflow *entity.Workflow
	Content  *entity.ContentItem
	Comment  string
	Now      time.Time
}

// ReplaceTokens substitutes every supported token in template
func ReplaceTokens(template string, v TokenValues) string {
	var user, state, workflow, content string
	if v.User != nil {
		user = v.User.DisplayName
	}
	if v.State != nil {
		state = v.State.Name
	}
	if v.Workflow != nil {
		workflow = v.Workflow.Name
	}
	if v.Content != nil {
		content = v.Content.Title
	}

	r := strings.NewReplacer(
		TokenUser, user,
		TokenDate, v.Now.UTC().Format(DateLayout),
		TokenState, state,
		TokenWorkflow, workflow,
		TokenContent, content,
		TokenComment, v.Comment,
	)
	return r.Replace(template)
}

// AttachComment appends the comment token to a notification body when it is
// missing, then substitutes userComment. An empty body stays empty.
func AttachComment(body, userComment string) string {
	if body == "" {
		return ""
	}
	if !strings.Contains(body, TokenComment) {
		body += "<br/><br/>" + TokenComment
	}
	return strings.ReplaceAll(body, TokenComment, userComment)
}
