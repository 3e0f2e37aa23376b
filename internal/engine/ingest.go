package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/tasking/internal/canonical"
	"github.com/roach88/tasking/internal/task"
)

// SignatureText returns the canonical JSON of a task's comparable fields:
// a fixed-order array of provider_id, location, flight, customer_hint,
// checklist and sla_due_at.
//
// Absent and null fields encode as null, map keys are sorted, null members
// are dropped, and checklist order is kept. Two requests are duplicates
// exactly when their texts are equal.
func SignatureText(t task.Task) (string, error) {
	n := t.Normalized()
	return canonical.String([]any{
		n.ProviderID,
		n.Location,
		n.Flight,
		n.CustomerHint,
		n.Checklist,
		n.SLADueAt,
	})
}

// Signature returns the domain-separated SHA-256 of SignatureText.
func Signature(t task.Task) (string, error) {
	text, err := SignatureText(t)
	if err != nil {
		return "", err
	}
	return canonical.Digest(canonical.DomainSignature, []byte(text)), nil
}

// Create returns a new task for req, or the existing task an identical
// earlier request created.
func (e *Engine) Create(ctx context.Context, req task.CreateRequest) (task.Task, error) {
	t, _, err := e.CreateWithOutcome(ctx, req)
	return t, err
}

// CreateWithOutcome is Create that also reports whether a new task was
// inserted (true) or an existing one returned (false).
func (e *Engine) CreateWithOutcome(ctx context.Context, req task.CreateRequest) (task.Task, bool, error) {
	if err := req.Validate(); err != nil {
		return task.Task{}, false, err
	}

	candidate := req.NewTask("", stamp(e.clock, time.Time{}))
	sig, err := Signature(candidate)
	if err != nil {
		return task.Task{}, false, task.NewMalformed("task", fmt.Sprintf("cannot canonicalize: %v", err))
	}

	existing, err := e.store.FindCandidates(ctx, candidate.OrderItemID, candidate.ServiceType)
	if err != nil {
		e.logger.Error("find candidates failed",
			"order_item_id", candidate.OrderItemID,
			"service_type", candidate.ServiceType,
			"error", err)
		return task.Task{}, false, err
	}

	for _, c := range existing {
		cs, err := Signature(c)
		if err != nil {
			e.logger.Warn("skipping candidate with unreadable fields", "task_id", c.ID, "error", err)
			continue
		}
		if cs == sig {
			e.logger.Debug("duplicate creation, returning existing task",
				"task_id", c.ID,
				"order_item_id", c.OrderItemID,
				"service_type", c.ServiceType)
			return c, false, nil
		}
	}

	candidate.ID = e.ids.Generate()
	stored, inserted, err := e.store.InsertTask(ctx, candidate, sig)
	if err != nil {
		e.logger.Error("insert task failed", "task_id", candidate.ID, "error", err)
		return task.Task{}, false, err
	}

	if inserted {
		e.logger.Info("task created",
			"task_id", stored.ID,
			"order_item_id", stored.OrderItemID,
			"service_type", stored.ServiceType)
	} else {
		e.logger.Debug("concurrent duplicate creation, returning existing task", "task_id", stored.ID)
	}

	return stored, inserted, nil
}
