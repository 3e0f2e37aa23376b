package task

import (
	"time"

	"github.com/roach88/tasking/internal/canonical"
)

// Task is a unit of ground-service work tracked through its lifecycle.
type Task struct {
	ID           string          `json:"id"`
	OrderItemID  string          `json:"order_item_id"`
	ServiceType  string          `json:"service_type"`
	ProviderID   *string         `json:"provider_id"`
	Location     *Location       `json:"location"`
	Flight       *Flight         `json:"flight"`
	CustomerHint map[string]any  `json:"customer_hint"`
	Status       Status          `json:"status"`
	Checklist    []ChecklistItem `json:"checklist"`
	SLADueAt     *time.Time      `json:"sla_due_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Location identifies where the service is delivered.
type Location struct {
	Terminal string `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Zone     string `json:"zone,omitempty" yaml:"zone,omitempty"`
	Gate     string `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// IsZero reports whether no location field is set.
func (l *Location) IsZero() bool {
	return l == nil || (l.Terminal == "" && l.Zone == "" && l.Gate == "")
}

// Flight links a task to a scheduled departure.
type Flight struct {
	IATA string     `json:"iata,omitempty" yaml:"iata,omitempty"`
	STD  *time.Time `json:"std,omitempty" yaml:"std,omitempty"`
}

// IsZero reports whether no flight field is set.
func (f *Flight) IsZero() bool {
	return f == nil || (f.IATA == "" && f.STD == nil)
}

// ChecklistItem is one step the provider works through. Checklist order
// is significant.
type ChecklistItem struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Required bool   `json:"required"`
	Done     bool   `json:"done"`
}

// Event is an immutable audit record of a creation or accepted transition.
// FromStatus is empty for the creation event.
type Event struct {
	ID         int64          `json:"id"`
	TaskID     string         `json:"task_id"`
	Code       string         `json:"code"`
	FromStatus Status         `json:"from_status,omitempty"`
	ToStatus   Status         `json:"to_status"`
	Payload    map[string]any `json:"payload"`
	Timestamp  time.Time      `json:"ts"`
}

// EventCreated is the code of the event appended when a task is created.
const EventCreated = "CREATED"

// Normalized returns a copy of t with its comparable fields in stored form:
// empty optional structures collapse to nil, timestamps are UTC at
// microsecond precision, and an absent checklist becomes an empty one.
func (t Task) Normalized() Task {
	if t.ProviderID != nil && *t.ProviderID == "" {
		t.ProviderID = nil
	}
	if t.Location.IsZero() {
		t.Location = nil
	}
	if t.Flight.IsZero() {
		t.Flight = nil
	} else if t.Flight.STD != nil {
		t.Flight = &Flight{IATA: t.Flight.IATA, STD: normalizeTime(t.Flight.STD)}
	}
	if isEmptyHint(t.CustomerHint) {
		t.CustomerHint = nil
	}
	if t.Checklist == nil {
		t.Checklist = []ChecklistItem{}
	}
	t.SLADueAt = normalizeTime(t.SLADueAt)
	return t
}

func normalizeTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	u := ts.UTC().Truncate(time.Microsecond)
	return &u
}

func isEmptyHint(h map[string]any) bool {
	if len(h) == 0 {
		return true
	}
	n, err := canonical.Normalize(h)
	if err != nil {
		return false
	}
	obj, ok := n.(map[string]any)
	return ok && len(obj) == 0
}

// Change describes an accepted transition to persist: the new status, the
// new updated_at and the event recording it.
type Change struct {
	Status    Status
	UpdatedAt time.Time
	Event     Event
}

// UpdateFunc inspects the locked current row of a task and decides what to
// persist. A nil Change leaves the row untouched and appends nothing; an
// error aborts the transaction and is returned to the caller unchanged.
type UpdateFunc func(current Task) (*Change, error)
