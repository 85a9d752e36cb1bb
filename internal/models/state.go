// Package models defines session lifecycle states for interviewd.
package models

// SessionState is the single source of truth for a session's lifecycle.
// Transitions are monotonic forward; no state is revisited. StateFailed is a
// parallel terminal reachable from any non-terminal state.
type SessionState string

const (
	StateIdle                 SessionState = "idle"
	StateRequestingPermission SessionState = "requesting_permission"
	StateConnecting           SessionState = "connecting"
	StateActive               SessionState = "active"
	StateEnding               SessionState = "ending"
	StateEnded                SessionState = "ended"
	StateFeedbackPending      SessionState = "feedback_pending"
	StateFeedbackSaved        SessionState = "feedback_saved"
	StateFailed               SessionState = "failed"
)

// stateOrder gives each forward state its position in the lifecycle.
// StateFailed is deliberately absent; it is handled separately.
var stateOrder = map[SessionState]int{
	StateIdle:                 0,
	StateRequestingPermission: 1,
	StateConnecting:           2,
	StateActive:               3,
	StateEnding:               4,
	StateEnded:                5,
	StateFeedbackPending:      6,
	StateFeedbackSaved:        7,
}

// IsTerminal reports whether no further transitions are permitted.
func (s SessionState) IsTerminal() bool {
	return s == StateFeedbackSaved || s == StateFailed
}

// CanTransition reports whether moving from s to next preserves the
// monotonic-forward invariant. Any non-terminal state may move to
// StateFailed.
func (s SessionState) CanTransition(next SessionState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	to, ok := stateOrder[next]
	if !ok {
		return false
	}
	return to > from
}
