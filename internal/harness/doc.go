// Package harness runs YAML conformance scenarios against the task engine.
//
// Each scenario executes on a fresh in-memory SQLite store with a
// deterministic clock and sequential task ids, so two runs of the same
// scenario produce byte-identical traces.
//
// # Scenario Format
//
//	name: wchr_happy_path
//	description: "Wheelchair assistance from creation to completion"
//	setup:
//	  - op: create
//	    as: t1
//	    request: { order_item_id: OI-1, service_type: WCHR }
//	flow:
//	  - op: transition
//	    task: t1
//	    status: assigned
//	    code: ACCEPTED
//	    expect: { status: assigned, outcome: applied }
//	  - op: transition
//	    task: t1
//	    status: done
//	    code: COMPLETED
//	    expect: { error: INVALID_TRANSITION }
//	assertions:
//	  - type: final_status
//	    task: t1
//	    status: assigned
//	  - type: event_codes
//	    task: t1
//	    codes: [CREATED, ACCEPTED]
//
// Steps refer to tasks by the alias bound with "as" on a create step. An
// unbound name is used as a literal task id, which lets scenarios probe
// missing tasks.
//
// # Operations
//
//   - create: Engine.CreateWithOutcome; outcome is created or existing
//   - transition: Engine.Transition; outcome is applied or noop
//   - get: Engine.Get
//   - list: Engine.List with an optional status filter
//
// # Assertion Types
//
//   - final_status: the stored status of a task
//   - event_codes: the codes of a task's events, in log order
//   - event_count: the number of events of a task
//   - history: the status timeline rebuilt from a task's events
//   - task_count: the number of tasks, optionally filtered by status
//   - replay_consistent: every task's event log replays to its stored status
//
// # Golden Traces
//
// The trace of a run is serialized as canonical JSON and compared against
// testdata/golden/<name>.golden with goldie. Regenerate with -update.
package harness
