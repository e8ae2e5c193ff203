package domain

import "fmt"

// Status is the machine state of a request.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under-review"
	StatusInProgress  Status = "in-progress"
	StatusCompleted   Status = "completed"
	StatusRejected    Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusSubmitted, StatusUnderReview, StatusInProgress, StatusCompleted, StatusRejected}

// statusLabels is the only place display labels are defined.
var statusLabels = map[Status]string{
	StatusSubmitted:   "Submitted",
	StatusUnderReview: "Under Review",
	StatusInProgress:  "In Progress",
	StatusCompleted:   "Completed",
	StatusRejected:    "Rejected",
}

// StatusLabel returns the display label for s, or "" for an unknown status.
func StatusLabel(s Status) string {
	return statusLabels[s]
}

// StatusFromLabel is the reverse lookup of StatusLabel.
func StatusFromLabel(label string) (Status, bool) {
	for s, l := range statusLabels {
		if l == label {
			return s, true
		}
	}
	return "", false
}

// ParseStatus accepts only the machine values.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if _, ok := statusLabels[s]; !ok {
		return "", fmt.Errorf("invalid status %q", v)
	}
	return s, nil
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusRejected {
		return true
	}
	switch from {
	case StatusSubmitted:
		return to == StatusUnderReview
	case StatusUnderReview:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted
	}
	return false
}

// DefaultProgress is the progress recorded when a transition does not specify one.
func DefaultProgress(s Status) int {
	switch s {
	case StatusUnderReview:
		return 25
	case StatusInProgress:
		return 50
	case StatusCompleted:
		return 100
	}
	return 0
}
