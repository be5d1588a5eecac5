package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStateTransitions tests the full transition table
func TestStateTransitions(t *testing.T) {
	valid := map[State][]State{
		StateCreated:  {StateStarting},
		StateStopped:  {StateStarting},
		StateStarting: {StateStarted, StateFailed},
		StateStarted:  {StateStopping, StateFailed},
		StateStopping: {StateStopped, StateFailed},
		StateFailed:   {StateStarting, StateStopping},
	}

	all := []State{StateCreated, StateStarting, StateStarted, StateStopping, StateStopped, StateFailed}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, v := range valid[from] {
				if v == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

// TestStateRemovable tests which states allow unregistration
func TestStateRemovable(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateCreated, true},
		{StateStarting, false},
		{StateStarted, false},
		{StateStopping, false},
		{StateStopped, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Removable())
		})
	}
	assert.Len(t, StateNames(), 6)
}
