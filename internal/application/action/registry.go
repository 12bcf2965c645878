// Package action maps (content type, action type) pairs to workflow actions
// that run after a workflow completes or is discarded.
package action

import (
	"context"
	"sync"

	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// Action is a side effect invoked on workflow completion or discard
type Action interface {
	DoAction(ctx context.Context, item *entity.ContentItem, userID int64) error
}

// Func adapts a function to Action
type Func func(ctx context.Context, item *entity.ContentItem, userID int64) error

// DoAction calls f
func (f Func) DoAction(ctx context.Context, item *entity.ContentItem, userID int64) error {
	return f(ctx, item, userID)
}

// Registry resolves actions registered at process start
type Registry interface {
	Register(contentTypeID int64, actionType entity.ActionType, a Action)
	Lookup(contentTypeID int64, actionType entity.ActionType) (Action, bool)
}

type key struct {
	contentTypeID int64
	actionType    entity.ActionType
}

type registry struct {
	mu      sync.RWMutex
	actions map[key]Action
}

// NewRegistry creates an empty action registry
func NewRegistry() Registry {
	return &registry{actions: make(map[key]Action)}
}

// Register replaces any action already bound to the pair
func (r *registry) Register(contentTypeID int64, actionType entity.ActionType, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[key{contentTypeID, actionType}] = a
}

func (r *registry) Lookup(contentTypeID int64, actionType entity.ActionType) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[key{contentTypeID, actionType}]
	return a, ok
}
