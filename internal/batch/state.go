// Package batch validates CSV uploads of candidate locations, submits them as
// backend jobs, polls job status until a terminal state and keeps the job
// history table.
package batch

import "strings"

// State is a backend job status.
type State string

const (
	StateReceived State = "RECEIVED"
	StateStarted  State = "STARTED"
	StateRetry    State = "RETRY"
	StatePending  State = "PENDING"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateRevoked  State = "REVOKED"
)

// IsTerminal reports whether no further transition can occur.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	default:
		return false
	}
}

// stopsPolling reports whether status ends polling: a terminal state or any
// status text carrying an explicit failure.
func stopsPolling(status string) bool {
	return State(status).IsTerminal() || isFailure(status)
}

// isFailure matches explicit failure messages such as "FAILURE" or
// "Failed to parse locations".
func isFailure(status string) bool {
	return strings.Contains(strings.ToLower(status), "fail")
}
