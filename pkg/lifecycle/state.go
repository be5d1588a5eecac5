package lifecycle

// State is a component's position in its lifecycle
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateStarted  State = "started"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

var transitions = map[State][]State{
	StateCreated:  {StateStarting},
	StateStopped:  {StateStarting},
	StateStarting: {StateStarted, StateFailed},
	StateStarted:  {StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateFailed:   {StateStarting, StateStopping},
}

// CanTransitionTo reports whether s may move to next
func (s State) CanTransitionTo(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Removable reports whether a component in this state may be unregistered
func (s State) Removable() bool {
	return s == StateCreated || s == StateStopped || s == StateFailed
}

// startable is the set StartAll considers
func (s State) startable() bool {
	return s == StateCreated || s == StateStopped
}

// stoppable is the set StopAll and StopComponent consider
func (s State) stoppable() bool {
	return s == StateStarted || s == StateFailed
}

// StateNames lists every state, for metrics labels
func StateNames() []string {
	return []string{
		string(StateCreated),
		string(StateStarting),
		string(StateStarted),
		string(StateStopping),
		string(StateStopped),
		string(StateFailed),
	}
}
