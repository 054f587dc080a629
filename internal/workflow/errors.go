package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the operation referenced an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrConflict means the operation is invalid for the session's
	// current state, e.g. ending a session mid-creation or ending an
	// already-ended session with nothing left to release.
	ErrConflict = errors.New("operation conflicts with session state")

	// ErrInvalidState means a notification was requested for a session
	// that is not active.
	ErrInvalidState = errors.New("session is not active")
)

// ValidationError reports a malformed or incomplete training
// description, rejected before any external effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid training description: %s", e.Reason)
}
