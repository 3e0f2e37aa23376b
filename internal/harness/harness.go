package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/tasking/internal/engine"
	"github.com/roach88/tasking/internal/store"
	"github.com/roach88/tasking/internal/task"
	"github.com/roach88/tasking/internal/testutil"
)

// Harness executes one scenario against a private engine and store.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	aliases map[string]string
	logger  *slog.Logger
}

// Run executes a scenario with a background context.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Execute setup steps; any failure aborts with an error
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions
//
// Failed expectations and assertions are reported in Result.Errors. A
// returned error means the scenario could not run.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithClock(testutil.NewDeterministicClock()),
			engine.WithIDGenerator(testutil.NewSequentialIDs("task")),
		),
		aliases: map[string]string{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()

	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, step)
		result.AddTrace(ev)
		if err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		result.AddTrace(ev)
		for _, msg := range h.checkExpect(step, ev, err) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
		h.logger.Info("flow step completed", "step", i, "op", step.Op, "task", ev.Task, "outcome", ev.Outcome, "error", ev.Error)
	}

	for _, msg := range EvaluateAssertions(ctx, h, scenario.Assertions) {
		result.AddError(msg)
	}

	for alias, id := range h.aliases {
		result.Tasks[alias] = id
	}
	return result, nil
}

// resolve maps an alias to its task id; unknown names are literal ids.
func (h *Harness) resolve(name string) string {
	if id, ok := h.aliases[name]; ok {
		return id
	}
	return name
}

// execute runs one step. Engine errors are recorded in the trace event and
// also returned.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{Op: step.Op}

	var err error
	switch step.Op {
	case OpCreate:
		var (
			t       task.Task
			created bool
		)
		t, created, err = h.engine.CreateWithOutcome(ctx, *step.Request)
		if err == nil {
			ev.Task = t.ID
			ev.Status = string(t.Status)
			ev.Outcome = OutcomeExisting
			if created {
				ev.Outcome = OutcomeCreated
			}
			if step.As != "" {
				h.aliases[step.As] = t.ID
			}
		}

	case OpTransition:
		id := h.resolve(step.Task)
		ev.Task = id
		ev.Code = step.Code

		before, countErr := h.eventCount(ctx, id)
		var t task.Task
		t, err = h.engine.Transition(ctx, id, task.Status(step.Status), step.Code, step.Payload)
		if err == nil {
			ev.Status = string(t.Status)
			after, _ := h.eventCount(ctx, id)
			ev.Outcome = OutcomeNoop
			if countErr == nil && after > before {
				ev.Outcome = OutcomeApplied
			}
		}

	case OpGet:
		id := h.resolve(step.Task)
		ev.Task = id
		var t task.Task
		t, err = h.engine.Get(ctx, id)
		if err == nil {
			ev.Status = string(t.Status)
		}

	case OpList:
		var statuses []task.Status
		statuses, err = task.ParseStatuses(step.Statuses)
		if err == nil {
			var tasks []task.Task
			tasks, err = h.engine.List(ctx, statuses...)
			if err == nil {
				ev.Tasks = make([]string, len(tasks))
				for i, t := range tasks {
					ev.Tasks[i] = t.ID
				}
			}
		}

	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil {
		ev.Error = string(task.CodeOf(err))
		if ev.Error == "" {
			ev.Error = err.Error()
		}
	}
	return ev, err
}

func (h *Harness) eventCount(ctx context.Context, id string) (int, error) {
	return h.engine.EventCount(ctx, id)
}

// checkExpect compares a step's trace event with its expect clause. A step
// without one must succeed.
func (h *Harness) checkExpect(step Step, ev TraceEvent, err error) []string {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var msgs []string
	if exp.Error != "" {
		if ev.Error != exp.Error {
			msgs = append(msgs, fmt.Sprintf("expected error %s, got %q", exp.Error, ev.Error))
		}
		return msgs
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	if exp.Status != "" && ev.Status != exp.Status {
		msgs = append(msgs, fmt.Sprintf("expected status %s, got %s", exp.Status, ev.Status))
	}
	if exp.Outcome != "" && ev.Outcome != exp.Outcome {
		msgs = append(msgs, fmt.Sprintf("expected outcome %s, got %s", exp.Outcome, ev.Outcome))
	}
	if exp.SameAs != "" {
		want := h.resolve(exp.SameAs)
		if ev.Task != want {
			msgs = append(msgs, fmt.Sprintf("expected task %s (%s), got %s", want, exp.SameAs, ev.Task))
		}
	}
	if exp.Tasks != nil {
		want := make([]string, len(exp.Tasks))
		for i, name := range exp.Tasks {
			want[i] = h.resolve(name)
		}
		if !slices.Equal(want, ev.Tasks) {
			msgs = append(msgs, fmt.Sprintf("expected tasks %v, got %v", want, ev.Tasks))
		}
	}
	return msgs
}
