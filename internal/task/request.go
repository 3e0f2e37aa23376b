package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tasking/internal/canonical"
)

// CreateRequest carries the fields of a task creation. Optional fields
// may be omitted or null; both mean absent.
type CreateRequest struct {
	OrderItemID  string               `json:"order_item_id" yaml:"order_item_id"`
	ServiceType  string               `json:"service_type" yaml:"service_type"`
	ProviderID   *string              `json:"provider_id,omitempty" yaml:"provider_id,omitempty"`
	Location     *Location            `json:"location,omitempty" yaml:"location,omitempty"`
	Flight       *Flight              `json:"flight,omitempty" yaml:"flight,omitempty"`
	CustomerHint map[string]any       `json:"customer_hint,omitempty" yaml:"customer_hint,omitempty"`
	Checklist    []ChecklistItemInput `json:"checklist,omitempty" yaml:"checklist,omitempty"`
	SLADueAt     *time.Time           `json:"sla_due_at,omitempty" yaml:"sla_due_at,omitempty"`
}

// ChecklistItemInput is a checklist item as submitted. Required defaults
// to true and Done to false.
type ChecklistItemInput struct {
	Key      string `json:"key" yaml:"key"`
	Title    string `json:"title" yaml:"title"`
	Required *bool  `json:"required,omitempty" yaml:"required,omitempty"`
	Done     *bool  `json:"done,omitempty" yaml:"done,omitempty"`
}

// Item applies the defaults.
func (in ChecklistItemInput) Item() ChecklistItem {
	item := ChecklistItem{Key: in.Key, Title: in.Title, Required: true}
	if in.Required != nil {
		item.Required = *in.Required
	}
	if in.Done != nil {
		item.Done = *in.Done
	}
	return item
}

// Validate checks the request shape. It never touches a store.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.OrderItemID) == "" {
		return NewMalformed("order_item_id", "order_item_id is required")
	}
	if strings.TrimSpace(r.ServiceType) == "" {
		return NewMalformed("service_type", "service_type is required")
	}
	for i, item := range r.Checklist {
		if strings.TrimSpace(item.Key) == "" {
			return NewMalformed(fmt.Sprintf("checklist[%d].key", i), "checklist item key is required")
		}
	}
	if r.CustomerHint != nil {
		if _, err := canonical.Normalize(r.CustomerHint); err != nil {
			return NewMalformed("customer_hint", fmt.Sprintf("customer_hint is not JSON-safe: %v", err))
		}
	}
	return nil
}

// NewTask builds the task a request describes, in status new.
func (r CreateRequest) NewTask(id string, now time.Time) Task {
	var checklist []ChecklistItem
	if len(r.Checklist) > 0 {
		checklist = make([]ChecklistItem, len(r.Checklist))
		for i, in := range r.Checklist {
			checklist[i] = in.Item()
		}
	}

	now = now.UTC().Truncate(time.Microsecond)
	return Task{
		ID:           id,
		OrderItemID:  r.OrderItemID,
		ServiceType:  r.ServiceType,
		ProviderID:   r.ProviderID,
		Location:     r.Location,
		Flight:       r.Flight,
		CustomerHint: r.CustomerHint,
		Status:       StatusNew,
		Checklist:    checklist,
		SLADueAt:     r.SLADueAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}.Normalized()
}
