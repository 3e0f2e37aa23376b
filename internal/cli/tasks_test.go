package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasking/internal/task"
)

const fullRequest = `{
  "order_item_id": "oi-1",
  "service_type": "meet_assist",
  "location": {"terminal": "T1", "gate": "B12"},
  "flight": {"iata": "EK2", "std": "2025-03-01T10:00:00Z"},
  "customer_hint": {"pax": 2},
  "checklist": [{"key": "meet", "title": "Meet at gate"}],
  "sla_due_at": "2025-03-01T09:00:00Z"
}`

func createTask(t *testing.T, db string, args ...string) CreateResult {
	t.Helper()
	env, err := executeJSON(t, append([]string{"create", "--db", db}, args...)...)
	require.NoError(t, err)
	require.Equal(t, "ok", env.Status)

	var res CreateResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestCreate_FromFlags(t *testing.T) {
	db := workspace(t)

	first := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter")
	assert.True(t, first.Created)
	assert.Equal(t, task.StatusNew, first.Task.Status)
	assert.NotEmpty(t, first.Task.ID)

	second := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter")
	assert.False(t, second.Created)
	assert.Equal(t, first.Task.ID, second.Task.ID)

	other := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter", "--provider-id", "prov-7")
	assert.True(t, other.Created)
	assert.NotEqual(t, first.Task.ID, other.Task.ID)
}

func TestCreate_FromFileAndStdin(t *testing.T) {
	db := workspace(t)
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(fullRequest), 0o644))

	fromFile := createTask(t, db, "--file", path)
	assert.True(t, fromFile.Created)
	require.NotNil(t, fromFile.Task.Location)
	assert.Equal(t, "B12", fromFile.Task.Location.Gate)
	require.Len(t, fromFile.Task.Checklist, 1)
	assert.True(t, fromFile.Task.Checklist[0].Required)

	out, err := executeIn(t, fullRequest, "create", "--db", db, "-f", "-", "--format", "json")
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	var fromStdin CreateResult
	require.NoError(t, json.Unmarshal(env.Data, &fromStdin))
	assert.False(t, fromStdin.Created)
	assert.Equal(t, fromFile.Task.ID, fromStdin.Task.ID)
}

func TestCreate_Malformed(t *testing.T) {
	db := workspace(t)

	env, err := executeJSON(t, "create", "--db", db, "--order-item-id", "oi-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MALFORMED_PAYLOAD", env.Error.Code)
}

func TestCreate_TextOutput(t *testing.T) {
	db := workspace(t)

	out, err := executeIn(t, fullRequest, "create", "--db", db, "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.Contains(t, out, "[new]")
	assert.Contains(t, out, "terminal T1, gate B12")
	assert.Contains(t, out, "[ ] meet Meet at gate")

	out, err = executeIn(t, fullRequest, "create", "--db", db, "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Existing equivalent task")
}

func TestGet(t *testing.T) {
	db := workspace(t)
	created := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter")

	env, err := executeJSON(t, "get", created.Task.ID, "--db", db)
	require.NoError(t, err)
	var got task.Task
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, created.Task.ID, got.ID)

	env, err = executeJSON(t, "get", "task-missing", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestList_StatusFilter(t *testing.T) {
	db := workspace(t)
	a := createTask(t, db, "--order-item-id", "oi-a", "--service-type", "porter")
	b := createTask(t, db, "--order-item-id", "oi-b", "--service-type", "porter")
	_, err := execute(t, "transition", a.Task.ID, "assigned", "--code", "ACCEPTED", "--db", db)
	require.NoError(t, err)

	env, err := executeJSON(t, "list", "--db", db, "--status", "new")
	require.NoError(t, err)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, b.Task.ID, tasks[0].ID)

	env, err = executeJSON(t, "list", "--db", db, "--status", "new,assigned")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	assert.Len(t, tasks, 2)

	env, err = executeJSON(t, "list", "--db", db, "--status", "done")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(env.Data))

	_, err = executeJSON(t, "list", "--db", db, "--status", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestList_Empty(t *testing.T) {
	db := workspace(t)
	out, err := execute(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks.")
}

func TestTransitionAndEvents(t *testing.T) {
	db := workspace(t)
	id := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter").Task.ID

	steps := []struct {
		status, code string
	}{
		{"assigned", "ACCEPTED"},
		{"in_progress", "STARTED"},
		{"in_progress", "SCANNED"},
		{"done", "COMPLETED"},
	}
	for _, s := range steps {
		env, err := executeJSON(t, "transition", id, s.status, "--code", s.code, "--db", db)
		require.NoError(t, err, "%s -> %s", s.code, s.status)
		var got task.Task
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, task.Status(s.status), got.Status)
	}

	env, err := executeJSON(t, "events", id, "--db", db)
	require.NoError(t, err)
	var events []task.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))

	codes := make([]string, len(events))
	for i, ev := range events {
		codes[i] = ev.Code
	}
	assert.Equal(t, []string{"CREATED", "ACCEPTED", "STARTED", "COMPLETED"}, codes)

	out, err := execute(t, "events", id, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "CREATED")
	assert.Contains(t, out, "- -> [new]")
	assert.Contains(t, out, "in_progress -> [done]")
}

func TestTransition_Rejected(t *testing.T) {
	db := workspace(t)
	id := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter").Task.ID

	env, err := executeJSON(t, "transition", id, "done", "--code", "COMPLETED", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	env, err = executeJSON(t, "transition", id, "sideways", "--code", "X", "--db", db)
	require.Error(t, err)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MALFORMED_PAYLOAD", env.Error.Code)

	env, err = executeJSON(t, "transition", id, "failed", "--code", "FAILED", "--payload", "{not json", "--db", db)
	require.Error(t, err)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MALFORMED_PAYLOAD", env.Error.Code)
}

func TestTransition_Payload(t *testing.T) {
	db := workspace(t)
	id := createTask(t, db, "--order-item-id", "oi-1", "--service-type", "porter").Task.ID

	_, err := execute(t, "transition", id, "failed", "--code", "FAILED",
		"--payload", `{"reason_code":"NO_SHOW","attempts":3}`, "--db", db)
	require.NoError(t, err)

	env, err := executeJSON(t, "events", id, "--db", db)
	require.NoError(t, err)
	var events []task.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, map[string]any{"reason_code": "NO_SHOW", "attempts": float64(3)}, events[1].Payload)
}

func TestTransition_RequiresCode(t *testing.T) {
	db := workspace(t)
	_, err := execute(t, "transition", "task-1", "assigned", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
