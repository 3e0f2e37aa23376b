package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/tasking/internal/canonical"
	"github.com/roach88/tasking/internal/task"
)

// allowedTransitions is the explicit allow-list. Terminal statuses have no
// outgoing edges.
var allowedTransitions = map[task.Status][]task.Status{
	task.StatusNew:        {task.StatusAssigned, task.StatusFailed, task.StatusCancelled},
	task.StatusAssigned:   {task.StatusInProgress, task.StatusFailed, task.StatusCancelled},
	task.StatusInProgress: {task.StatusDone, task.StatusFailed, task.StatusCancelled},
	task.StatusDone:       {},
	task.StatusFailed:     {},
	task.StatusCancelled:  {},
}

// Allowed reports whether the allow-list has an edge from -> to.
// A self-transition is not an edge; Transition treats it as a no-op.
func Allowed(from, to task.Status) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// AllowedTargets returns the statuses reachable from s in one step.
func AllowedTargets(s task.Status) []task.Status {
	return slices.Clone(allowedTransitions[s])
}

// Transition moves task id to target and records an event with code and
// payload, atomically, under the row lock.
//
// Outcomes:
//   - target equals the current status: success, nothing written
//   - target not allowed from the current status: INVALID_TRANSITION
//   - otherwise: status and updated_at change and one event is appended
//
// Concurrent transitions on one task are serialized by the store; each
// evaluates the status left by the previous one.
func (e *Engine) Transition(ctx context.Context, id string, target task.Status, code string, payload map[string]any) (task.Task, error) {
	if !target.Valid() {
		return task.Task{}, task.NewMalformed("status", "unknown status "+string(target))
	}
	if strings.TrimSpace(code) == "" {
		return task.Task{}, task.NewMalformed("code", "event code is required")
	}
	if payload != nil {
		if _, err := canonical.Normalize(payload); err != nil {
			return task.Task{}, task.NewMalformed("payload", "payload is not JSON-safe: "+err.Error())
		}
	}
	if id == "" {
		return task.Task{}, task.NewNotFound(id)
	}

	var from task.Status
	applied := false
	t, err := e.store.UpdateLocked(ctx, id, func(current task.Task) (*task.Change, error) {
		from = current.Status
		if current.Status == target {
			return nil, nil
		}
		if !Allowed(current.Status, target) {
			err := task.NewInvalidTransition(id, current.Status, target)
			err.Allowed = AllowedTargets(current.Status)
			return nil, err
		}

		now := stamp(e.clock, current.UpdatedAt)
		applied = true
		return &task.Change{
			Status:    target,
			UpdatedAt: now,
			Event: task.Event{
				TaskID:     id,
				Code:       code,
				FromStatus: current.Status,
				ToStatus:   target,
				Payload:    payload,
				Timestamp:  now,
			},
		}, nil
	})

	switch {
	case task.IsInvalidTransition(err):
		e.logger.Info("transition rejected", "task_id", id, "from", from, "to", target, "code", code)
		return task.Task{}, err
	case err != nil:
		if task.IsStoreFailure(err) {
			e.logger.Error("transition failed", "task_id", id, "to", target, "error", err)
		}
		return task.Task{}, err
	case applied:
		e.logger.Info("transition applied", "task_id", id, "from", from, "to", target, "code", code)
	default:
		e.logger.Debug("self-transition, nothing to do", "task_id", id, "status", target)
	}

	return t, nil
}
