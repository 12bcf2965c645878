package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func editorial() *Workflow {
	return &Workflow{
		ID: 1,
		States: []*WorkflowState{
			{ID: 3, Name: "Published", Order: 30},
			{ID: 1, Name: "Draft", Order: 10},
			{ID: 2, Name: "Review", Order: 20},
		},
	}
}

func TestWorkflow_OrderedStates(t *testing.T) {
	wf := editorial()

	ordered := wf.OrderedStates()
	assert.Equal(t, []int64{1, 2, 3}, []int64{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	assert.Equal(t, int64(3), wf.States[0].ID, "receiver order is preserved")
}

func TestWorkflow_FirstAndLast(t *testing.T) {
	wf := editorial()

	assert.Equal(t, "Draft", wf.FirstState().Name)
	assert.Equal(t, "Published", wf.LastState().Name)
	assert.True(t, wf.IsFirstState(1))
	assert.False(t, wf.IsFirstState(2))
	assert.True(t, wf.IsLastState(3))
	assert.False(t, wf.IsLastState(NullID))

	empty := &Workflow{}
	assert.Nil(t, empty.FirstState())
	assert.Nil(t, empty.LastState())
	assert.False(t, empty.IsFirstState(1))
}

func TestWorkflow_NextAndPrevious(t *testing.T) {
	wf := editorial()

	tests := []struct {
		name     string
		got      *WorkflowState
		expected int64
	}{
		{"next of draft", wf.NextState(1), 2},
		{"next of last wraps to first", wf.NextState(3), 1},
		{"next of unknown", wf.NextState(42), 1},
		{"previous of review", wf.PreviousState(2), 1},
		{"previous of first wraps to last", wf.PreviousState(1), 3},
		{"previous of unknown", wf.PreviousState(42), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got.ID)
		})
	}
}

func TestContentItem_IsManaged(t *testing.T) {
	assert.False(t, (&ContentItem{StateID: NullID}).IsManaged())
	assert.True(t, (&ContentItem{StateID: 4}).IsManaged())
}

func TestStatePermission_Kind(t *testing.T) {
	role := &StatePermission{RoleID: 7, UserID: NullID}
	user := &StatePermission{RoleID: NullID, UserID: 9}

	assert.True(t, role.IsRole())
	assert.False(t, role.IsUser())
	assert.True(t, user.IsUser())
	assert.False(t, user.IsRole())
}

func TestNotificationContext(t *testing.T) {
	assert.Equal(t, "100:3:12", NotificationContext(100, 3, 12))
}

func TestParseLogType(t *testing.T) {
	got, ok := ParseLogType("stateinitiated")
	assert.True(t, ok)
	assert.Equal(t, LogStateInitiated, got)

	_, ok = ParseLogType("Published")
	assert.False(t, ok)
}
