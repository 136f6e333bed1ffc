package job

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations.
var (
	// ErrNotFound indicates an unknown or retired job id.
	ErrNotFound = errors.New("job: not found")

	// ErrTerminalState indicates a transition was attempted on a job that
	// already reached a terminal state.
	ErrTerminalState = errors.New("job: already in terminal state")
)

// TransitionError reports a rejected state transition.
type TransitionError struct {
	ID   ID
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job: cannot move %s from %s to %s", e.ID, e.From, e.To)
}

// Unwrap returns ErrTerminalState.
func (e *TransitionError) Unwrap() error {
	return ErrTerminalState
}
