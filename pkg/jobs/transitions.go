package jobs

// validTransitions is the single source of truth for the status state
// machine: queued -> running -> completed | failed. Terminal states have no
// outgoing edges.
var validTransitions = map[JobStatus][]JobStatus{
	StatusQueued:    {StatusRunning},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// CanTransition reports whether the state machine permits moving from one
// status to another. A transition to the current status is not listed here;
// the store treats it as an idempotent no-op.
func CanTransition(from, to JobStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
