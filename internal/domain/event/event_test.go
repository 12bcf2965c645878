package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"workflow started", TypeWorkflowStarted, true},
		{"state completed", TypeStateCompleted, true},
		{"state discarded", TypeStateDiscarded, true},
		{"workflow completed", TypeWorkflowCompleted, true},
		{"workflow discarded", TypeWorkflowDiscarded, true},
		{"workflow action", TypeWorkflowAction, true},
		{"unknown", Type("unknown.type"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeStateCompleted, 42, 7, map[string]interface{}{
		"from_state_id": int64(1),
		"to_state_id":   int64(2),
	})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.NotEqual(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, TypeStateCompleted, evt.Type)
	assert.Equal(t, int64(42), evt.ContentItemID)
	assert.Equal(t, int64(7), evt.WorkflowID)
	assert.Equal(t, int64(2), evt.GetPayloadInt("to_state_id"))
	assert.WithinDuration(t, time.Now(), evt.Timestamp, time.Second)
}

func TestEvent_CorrelationChain(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "req-42")
	first := NewEventFromContext(ctx, TypeStateCompleted, 1, 1, nil)
	second := NewEventFromContext(ctx, TypeWorkflowCompleted, 1, 1, nil)

	assert.Equal(t, "req-42", first.CorrelationID)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	assert.NotEqual(t, first.ID, second.ID)

	lone := NewEventFromContext(context.Background(), TypeStateCompleted, 1, 1, nil)
	assert.NotEmpty(t, lone.CorrelationID)
	assert.NotEqual(t, "req-42", lone.CorrelationID)

	_, ok := CorrelationFrom(WithCorrelation(context.Background(), ""))
	assert.False(t, ok)
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeWorkflowStarted, 1, 2, map[string]interface{}{"user": "alice"})
	modified := original.WithPayload("state", "Draft")

	_, exists := original.Payload["state"]
	assert.False(t, exists, "original payload must not change")
	assert.Equal(t, "alice", modified.GetPayloadString("user"))
	assert.Equal(t, "Draft", modified.GetPayloadString("state"))
	assert.Equal(t, original.ID, modified.ID)
	assert.Equal(t, original.ContentItemID, modified.ContentItemID)
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeWorkflowAction, 1, 1, map[string]interface{}{
		"int":    5,
		"float":  6.9,
		"string": "x",
	})

	assert.Equal(t, int64(5), evt.GetPayloadInt("int"))
	assert.Equal(t, int64(6), evt.GetPayloadInt("float"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("string"))
	assert.Equal(t, "", evt.GetPayloadString("int"))
	assert.Equal(t, "", evt.GetPayloadString("missing"))
}

func TestEvent_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeStateCompleted, int64(i), 1, nil)
		assert.False(t, ids[evt.ID], "duplicate event id %s", evt.ID)
		ids[evt.ID] = true
	}
}

func TestType_IsTransition(t *testing.T) {
	assert.True(t, TypeStateCompleted.IsTransition())
	assert.True(t, TypeWorkflowDiscarded.IsTransition())
	assert.False(t, TypeWorkflowAction.IsTransition())
	assert.False(t, Type("state.unknown").IsTransition())
}
