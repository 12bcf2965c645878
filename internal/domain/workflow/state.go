package workflow

import "strconv"

// State is the persisted id of a workflow state
type State int64

// NoState marks an item outside any workflow
const NoState State = -1

func (s State) String() string {
	if s == NoState {
		return "none"
	}
	return strconv.FormatInt(int64(s), 10)
}

// IsValid reports whether s names a real state
func (s State) IsValid() bool {
	return s != NoState
}

// ID returns the raw state id
func (s State) ID() int64 {
	return int64(s)
}
