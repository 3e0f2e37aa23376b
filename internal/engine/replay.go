package engine

import (
	"context"
	"fmt"

	"github.com/roach88/tasking/internal/task"
)

// Replay model
//
// Every accepted change appends exactly one event carrying its from and to
// statuses, and events are read back in (timestamp, id) order. Replaying
// them from the CREATED event therefore rebuilds the task's status history
// without reading the task row, and the last replayed status must equal the
// stored one.
//
// Verify checks the log is well formed:
//   - the first event is CREATED with to_status new and no from_status
//   - every later event starts where the previous one ended
//   - every later event follows an allow-listed edge
//   - the final status equals the stored status

// Verification is the result of replaying one task's events.
type Verification struct {
	TaskID   string        `json:"task_id"`
	Stored   task.Status   `json:"stored"`
	Replayed task.Status   `json:"replayed"`
	History  []task.Status `json:"history"`
	Events   int           `json:"events"`
	Problem  string        `json:"problem,omitempty"`
}

// OK reports whether the event log is consistent with the stored row.
func (v Verification) OK() bool {
	return v.Problem == ""
}

// History returns the sequence of statuses task id has held, oldest first,
// rebuilt from its event log.
func (e *Engine) History(ctx context.Context, id string) ([]task.Status, error) {
	events, err := e.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	history, _ := replay(events)
	return history, nil
}

// Verify replays task id's events and compares the result with its stored
// status. Inconsistencies are reported in Verification.Problem, not as an
// error; errors are reserved for NOT_FOUND and store failures.
func (e *Engine) Verify(ctx context.Context, id string) (Verification, error) {
	t, err := e.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	events, err := e.store.ListEvents(ctx, id)
	if err != nil {
		return Verification{}, err
	}

	history, problem := replay(events)
	v := Verification{
		TaskID:  id,
		Stored:  t.Status,
		History: history,
		Events:  len(events),
		Problem: problem,
	}
	if len(history) > 0 {
		v.Replayed = history[len(history)-1]
	}
	if v.Problem == "" && v.Replayed != v.Stored {
		v.Problem = fmt.Sprintf("replayed status %s differs from stored status %s", v.Replayed, v.Stored)
	}

	if !v.OK() {
		e.logger.Warn("event log inconsistent", "task_id", id, "problem", v.Problem)
	}
	return v, nil
}

// VerifyAll verifies every task, oldest first.
func (e *Engine) VerifyAll(ctx context.Context) ([]Verification, error) {
	ids, err := e.store.ListTaskIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Verification, 0, len(ids))
	for _, id := range ids {
		v, err := e.Verify(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

// replay folds events into a status history. It stops at the first
// malformed event and describes it in problem.
func replay(events []task.Event) (history []task.Status, problem string) {
	history = []task.Status{}
	if len(events) == 0 {
		return history, "no events recorded"
	}

	first := events[0]
	if first.Code != task.EventCreated || first.FromStatus != "" || first.ToStatus != task.StatusNew {
		return history, fmt.Sprintf("event %d: first event must be %s into %s", first.ID, task.EventCreated, task.StatusNew)
	}
	history = append(history, first.ToStatus)

	current := first.ToStatus
	for _, ev := range events[1:] {
		if ev.FromStatus != current {
			return history, fmt.Sprintf("event %d: starts at %s but task was %s", ev.ID, ev.FromStatus, current)
		}
		if !Allowed(ev.FromStatus, ev.ToStatus) {
			return history, fmt.Sprintf("event %d: %s -> %s is not an allowed transition", ev.ID, ev.FromStatus, ev.ToStatus)
		}
		current = ev.ToStatus
		history = append(history, current)
	}

	return history, ""
}
