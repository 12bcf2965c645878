package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/content-workflow/internal/domain/event"
)

// ErrClosed is returned when dispatching through a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher fans workflow events out to registered handlers
type Dispatcher interface {
	// Subscribe registers a handler under a generated name
	Subscribe(eventType event.Type, handler Handler)

	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a handler that receives every event type
	SubscribeAll(name string, handler Handler)

	// Unsubscribe removes a handler by name. An empty eventType also
	// matches wildcard handlers.
	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs typed handlers then wildcard handlers, stopping at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs the same handlers in order on a background
	// goroutine. Errors are logged and do not stop later handlers.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects new events and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// routes is an immutable subscription table. Writers copy it, readers load
// it without locking.
type routes struct {
	typed    map[event.Type][]HandlerInfo
	wildcard []HandlerInfo
}

func (r *routes) clone() *routes {
	next := &routes{
		typed:    make(map[event.Type][]HandlerInfo, len(r.typed)),
		wildcard: append([]HandlerInfo(nil), r.wildcard...),
	}
	for t, hs := range r.typed {
		next.typed[t] = append([]HandlerInfo(nil), hs...)
	}
	return next
}

func (r *routes) match(t event.Type) []HandlerInfo {
	out := make([]HandlerInfo, 0, len(r.typed[t])+len(r.wildcard))
	out = append(out, r.typed[t]...)
	return append(out, r.wildcard...)
}

type eventDispatcher struct {
	writeMu sync.Mutex
	table   atomic.Pointer[routes]
	logger  Logger

	inflight sync.WaitGroup
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{}
	d.table.Store(&routes{typed: map[event.Type][]HandlerInfo{}})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// update applies fn to a copy of the table and publishes it
func (d *eventDispatcher) update(fn func(r *routes)) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	next := d.table.Load().clone()
	fn(next)
	d.table.Store(next)
}

func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	var name string
	d.update(func(r *routes) {
		name = fmt.Sprintf("%s-handler-%d", eventType, len(r.typed[eventType]))
		r.typed[eventType] = append(r.typed[eventType], HandlerInfo{Name: name, EventType: eventType, Handler: handler})
	})
	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.update(func(r *routes) {
		r.typed[eventType] = append(r.typed[eventType], HandlerInfo{Name: name, EventType: eventType, Handler: handler})
	})
	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	d.update(func(r *routes) {
		r.wildcard = append(r.wildcard, HandlerInfo{Name: name, Handler: handler})
	})
	d.logInfo("Wildcard handler registered", "handler_name", name)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.update(func(r *routes) {
		r.typed[eventType] = without(r.typed[eventType], name)
		if eventType == "" {
			r.wildcard = without(r.wildcard, name)
		}
	})
	d.logInfo("Handler unregistered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	for _, h := range d.table.Load().match(evt.Type) {
		if err := d.invoke(ctx, evt, h); err != nil {
			d.logError("Handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.Name, "error", err)
			return fmt.Errorf("handler %s failed: %w", h.Name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logError("Dropping event, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}

	handlers := d.table.Load().match(evt.Type)
	if len(handlers) == 0 {
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		for _, h := range handlers {
			if err := d.invoke(ctx, evt, h); err != nil {
				d.logError("Async handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.Name, "error", err)
			}
		}
	}()
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	registered := d.table.Load().typed[eventType]
	out := make([]HandlerInfo, len(registered))
	for i, h := range registered {
		out[i] = HandlerInfo{Name: h.Name, EventType: h.EventType}
	}
	return out
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	d.inflight.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

// invoke turns a handler panic into an error
func (d *eventDispatcher) invoke(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.Name, "panic", r)
		}
	}()
	return h.Handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}

func without(handlers []HandlerInfo, name string) []HandlerInfo {
	kept := handlers[:0]
	for _, h := range handlers {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	return kept
}
