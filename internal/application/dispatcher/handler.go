package dispatcher

import (
	"context"

	"github.com/garyjia/content-workflow/internal/domain/event"
)

// Handler reacts to one engine event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo is a registered handler. Wildcard entries have no EventType.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// Filter runs h only for events accepted by keep
func Filter(keep func(evt *event.Event) bool, h Handler) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if !keep(evt) {
			return nil
		}
		return h(ctx, evt)
	}
}

// TransitionsOnly is a Filter predicate that drops workflow.action events
func TransitionsOnly(evt *event.Event) bool {
	return evt.Type.IsTransition()
}
