package exchange

import (
	"attune/domain/core"
)

// transitionTable enumerates every legal status edge. Anything not listed is
// rejected with a descriptive error, never silently ignored.
var transitionTable = map[AttemptStatus][]AttemptStatus{
	StatusHeld:            {StatusAnalyzing},
	StatusAnalyzing:       {StatusReady, StatusAwaitingSharing},
	StatusAwaitingSharing: {StatusRefining, StatusReady},
	StatusRefining:        {StatusAnalyzing},
	StatusReady:           {StatusRevealed},
	StatusRevealed:        {StatusValidated},
	StatusValidated:       {}, // terminal
}

// CanTransition reports whether from -> to is a legal edge
func CanTransition(from, to AttemptStatus) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed rejection for illegal edges
func ValidateTransition(from, to AttemptStatus) error {
	if from == StatusValidated {
		return core.ErrTerminalStatus
	}
	if to == StatusValidated && from != StatusRevealed {
		return core.ErrNotRevealed
	}
	if !CanTransition(from, to) {
		return core.NewInvalidTransitionError(string(from), string(to))
	}
	return nil
}

// Transition mutates the attempt's status after validating the edge
func (a *Attempt) Transition(to AttemptStatus) error {
	if err := ValidateTransition(a.Status, to); err != nil {
		return err
	}
	a.Status = to
	a.UpdatedAt = core.Now()
	return nil
}

// ValidStatuses lists every status the machine recognizes
func ValidStatuses() []AttemptStatus {
	return []AttemptStatus{
		StatusHeld,
		StatusAnalyzing,
		StatusAwaitingSharing,
		StatusRefining,
		StatusReady,
		StatusRevealed,
		StatusValidated,
	}
}
