package harness

import "fmt"

// State is a position in the lifecycle of one case.
type State int

const (
	StateInit State = iota
	StateSessionAcquired
	StateNavigated
	StateWaitingForCondition
	StateConditionMet
	StateTimedOut
	StateExtracted
	StateCompared
	StatePassed
	StateFailed
	StateSkipped
	StateSessionReleased
)

var stateNames = map[State]string{
	StateInit:                "init",
	StateSessionAcquired:     "session-acquired",
	StateNavigated:           "navigated",
	StateWaitingForCondition: "waiting-for-condition",
	StateConditionMet:        "condition-met",
	StateTimedOut:            "timed-out",
	StateExtracted:           "state-extracted",
	StateCompared:            "compared",
	StatePassed:              "passed",
	StateFailed:              "failed",
	StateSkipped:             "skipped",
	StateSessionReleased:     "session-released",
}

func (state State) String() string {
	if name, found := stateNames[state]; found {
		return name
	}
	return fmt.Sprintf("state(%d)", int(state))
}

// Terminal reports whether no transition leaves state.
func (state State) Terminal() bool {
	return state == StateSessionReleased
}
