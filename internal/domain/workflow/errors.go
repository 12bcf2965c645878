package workflow

import "errors"

var (
	// ErrInvalidTransition means the trigger has no move from the item's state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState means the item is not positioned in a workflow
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed means every candidate move was rejected by its guard
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrPermissionDenied is returned when the acting user is not a reviewer of the current state
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStateConflict is returned when the declared current state no longer matches the stored one
	ErrStateConflict = errors.New("state conflict")

	// ErrWorkflowNotFound is returned when a workflow does not exist
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrContentItemNotFound is returned when a content item does not exist
	ErrContentItemNotFound = errors.New("content item not found")

	// ErrStateNotFound is returned when a workflow state does not exist
	ErrStateNotFound = errors.New("workflow state not found")

	// ErrAuthorNotFound is returned when no draft submitter can be found in the audit log
	ErrAuthorNotFound = errors.New("workflow author not found")
)
