package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoWorkflow marks events not tied to a specific workflow
const NoWorkflow int64 = -1

// Event represents a domain event raised by a workflow transition.
// Events raised while serving one request share a CorrelationID.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ContentItemID int64                  `json:"content_item_id"`
	WorkflowID    int64                  `json:"workflow_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

type correlationKey struct{}

// WithCorrelation tags ctx so events created from it share id
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationFrom returns the id set by WithCorrelation
func CorrelationFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

// NewEvent creates an event that starts its own correlation chain
func NewEvent(eventType Type, contentItemID, workflowID int64, payload map[string]interface{}) *Event {
	return newEvent(eventType, contentItemID, workflowID, payload, uuid.NewString())
}

// NewEventFromContext joins the correlation chain carried by ctx, or starts
// a new one when there is none.
func NewEventFromContext(ctx context.Context, eventType Type, contentItemID, workflowID int64, payload map[string]interface{}) *Event {
	id, ok := CorrelationFrom(ctx)
	if !ok {
		id = uuid.NewString()
	}
	return newEvent(eventType, contentItemID, workflowID, payload, id)
}

func newEvent(eventType Type, contentItemID, workflowID int64, payload map[string]interface{}, correlationID string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ContentItemID: contentItemID,
		WorkflowID:    workflowID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	cp := *e
	cp.Payload = make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		cp.Payload[k] = v
	}
	cp.Payload[key] = value
	return &cp
}

// GetPayloadString returns the string at key, or "" when absent or not a string
func (e *Event) GetPayloadString(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// GetPayloadInt returns the number at key as int64. Decoded JSON numbers
// arrive as float64 and are truncated.
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
