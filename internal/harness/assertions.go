package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tasking/internal/task"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Task     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Task != "" {
		fmt.Fprintf(&buf, " (task %s)", e.Task)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the harness state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertFinalStatus:
			err = h.assertFinalStatus(ctx, a)
		case AssertEventCodes:
			err = h.assertEventCodes(ctx, a)
		case AssertEventCount:
			err = h.assertEventCount(ctx, a)
		case AssertHistory:
			err = h.assertHistory(ctx, a)
		case AssertTaskCount:
			err = h.assertTaskCount(ctx, a)
		case AssertReplayConsistent:
			err = h.assertReplayConsistent(ctx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func (h *Harness) assertFinalStatus(ctx context.Context, a Assertion) error {
	id := h.resolve(a.Task)
	t, err := h.engine.Get(ctx, id)
	if err != nil {
		return &AssertionError{Type: a.Type, Task: id, Expected: "task to exist", Actual: err.Error()}
	}
	if string(t.Status) != a.Status {
		return &AssertionError{Type: a.Type, Task: id, Expected: a.Status, Actual: string(t.Status)}
	}
	return nil
}

func (h *Harness) assertEventCodes(ctx context.Context, a Assertion) error {
	id := h.resolve(a.Task)
	events, err := h.engine.Events(ctx, id)
	if err != nil {
		return &AssertionError{Type: a.Type, Task: id, Expected: "task to exist", Actual: err.Error()}
	}

	codes := make([]string, len(events))
	for i, ev := range events {
		codes[i] = ev.Code
	}
	if !slices.Equal(codes, a.Codes) {
		return &AssertionError{Type: a.Type, Task: id, Expected: fmt.Sprint(a.Codes), Actual: fmt.Sprint(codes)}
	}
	return nil
}

func (h *Harness) assertEventCount(ctx context.Context, a Assertion) error {
	id := h.resolve(a.Task)
	n, err := h.eventCount(ctx, id)
	if err != nil {
		return &AssertionError{Type: a.Type, Task: id, Expected: "task to exist", Actual: err.Error()}
	}
	if n != *a.Count {
		return &AssertionError{Type: a.Type, Task: id, Expected: fmt.Sprintf("%d events", *a.Count), Actual: fmt.Sprintf("%d events", n)}
	}
	return nil
}

func (h *Harness) assertHistory(ctx context.Context, a Assertion) error {
	id := h.resolve(a.Task)
	history, err := h.engine.History(ctx, id)
	if err != nil {
		return &AssertionError{Type: a.Type, Task: id, Expected: "task to exist", Actual: err.Error()}
	}

	got := make([]string, len(history))
	for i, st := range history {
		got[i] = string(st)
	}
	if !slices.Equal(got, a.Statuses) {
		return &AssertionError{Type: a.Type, Task: id, Expected: fmt.Sprint(a.Statuses), Actual: fmt.Sprint(got)}
	}
	return nil
}

func (h *Harness) assertTaskCount(ctx context.Context, a Assertion) error {
	statuses, err := task.ParseStatuses(a.Statuses)
	if err != nil {
		return fmt.Errorf("task_count: %w", err)
	}
	tasks, err := h.engine.List(ctx, statuses...)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "list to succeed", Actual: err.Error()}
	}
	if len(tasks) != *a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d tasks", *a.Count), Actual: fmt.Sprintf("%d tasks", len(tasks))}
	}
	return nil
}

func (h *Harness) assertReplayConsistent(ctx context.Context) error {
	results, err := h.engine.VerifyAll(ctx)
	if err != nil {
		return &AssertionError{Type: AssertReplayConsistent, Expected: "replay to run", Actual: err.Error()}
	}
	for _, v := range results {
		if !v.OK() {
			return &AssertionError{Type: AssertReplayConsistent, Task: v.TaskID, Expected: "consistent event log", Actual: v.Problem}
		}
	}
	return nil
}
