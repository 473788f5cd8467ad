package constants

// TaskStatus is the lifecycle state of an upload task.
type TaskStatus string

// Stable values (store these exact strings in DB).
const (
	TaskStatusUploaded  TaskStatus = "uploaded"  // created by the upload step
	TaskStatusParsing   TaskStatus = "parsing"   // pipeline running
	TaskStatusCompleted TaskStatus = "completed" // terminal: record extracted
	TaskStatusFailed    TaskStatus = "failed"    // terminal failure
	TaskStatusDuplicate TaskStatus = "duplicate" // terminal: matches a known candidate
)

var allTaskStatuses = []TaskStatus{
	TaskStatusUploaded,
	TaskStatusParsing,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusDuplicate,
}

// AllTaskStatuses returns every status in lifecycle order.
func AllTaskStatuses() []TaskStatus {
	out := make([]TaskStatus, len(allTaskStatuses))
	copy(out, allTaskStatuses)
	return out
}

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusDuplicate:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	for _, v := range allTaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is a legal task transition.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusUploaded:
		// update uploads against a missing candidate fail without parsing
		return to == TaskStatusParsing || to == TaskStatusFailed
	case TaskStatusParsing:
		return to.IsTerminal()
	}
	return false
}

// CanRestart reports whether a forced re-run may move a finished task back to
// parsing.
func CanRestart(from, to TaskStatus) bool {
	return from.IsTerminal() && to == TaskStatusParsing
}

// CandidateStatusActive is the default status for new candidates.
const (
	CandidateStatusActive   = "active"
	CandidateStatusInactive = "inactive"
)
