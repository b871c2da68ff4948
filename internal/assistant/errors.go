package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a run did not reach a terminal status within the
	// configured ceiling.
	ErrTimeout = errors.New("assistant run timed out")
	// ErrUpstreamUnavailable indicates the backend could not be reached or
	// returned a server-side failure.
	ErrUpstreamUnavailable = errors.New("assistant backend unavailable")
	// ErrNoReply indicates a completed run produced no assistant message.
	ErrNoReply = errors.New("run completed without a reply")
)

// RunFailedError reports a run that ended in a failed or cancelled status.
type RunFailedError struct {
	RunID  string
	Status RunStatus
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
}
