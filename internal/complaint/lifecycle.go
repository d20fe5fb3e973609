package complaint

import "strings"

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// ParseStatus accepts the canonical names case-insensitively, plus
// "in_progress"/"in-progress" for query strings.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(value))
	for _, status := range Statuses {
		if strings.EqualFold(normalized, string(status)) {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further business process follows the status.
// Terminal complaints can still be transitioned.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// AllowedTransition is permissive: every known status may move to every known
// status, including back out of a terminal one and onto itself.
func AllowedTransition(from, to Status) bool {
	_, fromOK := ParseStatus(string(from))
	_, toOK := ParseStatus(string(to))
	return fromOK && toOK
}
