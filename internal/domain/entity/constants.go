package entity

import "strings"

// NullID marks an unset identifier (no state, no role, no user)
const NullID int64 = -1

// LogType identifies the kind of audit entry
type LogType string

const (
	LogWorkflowStarted   LogType = "WorkflowStarted"
	LogStateInitiated    LogType = "StateInitiated"
	LogDraftCompleted    LogType = "DraftCompleted"
	LogStateCompleted    LogType = "StateCompleted"
	LogWorkflowApproved  LogType = "WorkflowApproved"
	LogStateDiscarded    LogType = "StateDiscarded"
	LogWorkflowDiscarded LogType = "WorkflowDiscarded"
	LogCommentProvided   LogType = "CommentProvided"
)

// String returns the string representation of the log type
func (t LogType) String() string {
	return string(t)
}

var logTypes = []LogType{
	LogWorkflowStarted,
	LogStateInitiated,
	LogDraftCompleted,
	LogStateCompleted,
	LogWorkflowApproved,
	LogStateDiscarded,
	LogWorkflowDiscarded,
	LogCommentProvided,
}

// ParseLogType matches s against the known log types, ignoring case
func ParseLogType(s string) (LogType, bool) {
	for _, t := range logTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// ActionType identifies a pluggable workflow action slot
type ActionType string

const (
	ActionCompleteWorkflow ActionType = "CompleteWorkflow"
	ActionDiscardWorkflow  ActionType = "DiscardWorkflow"
)

// String returns the string representation of the action type
func (t ActionType) String() string {
	return string(t)
}

// Notification type names
const (
	NotificationTypeWorkflow         = "ContentWorkflowNotification"
	NotificationTypeWorkflowNoAction = "ContentWorkflowNoActionNotification"
)

// DeliveryChannelLark names the Lark push channel in delivery bookkeeping
const DeliveryChannelLark = "lark"
