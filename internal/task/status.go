package task

import "fmt"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusNew,
	StatusAssigned,
	StatusInProgress,
	StatusDone,
	StatusFailed,
	StatusCancelled,
}

// Valid reports whether s is one of the fixed status values.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusDone, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// ParseStatus converts a wire value into a Status.
// Unknown values yield a MALFORMED_PAYLOAD error.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", NewMalformed("status", fmt.Sprintf("unknown status %q", v))
	}
	return s, nil
}

// ParseStatuses parses a status filter. Empty input means no filter.
func ParseStatuses(values []string) ([]Status, error) {
	out := make([]Status, 0, len(values))
	for _, v := range values {
		s, err := ParseStatus(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
