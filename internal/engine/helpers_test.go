package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tasking/internal/store"
	"github.com/roach88/tasking/internal/task"
	"github.com/roach88/tasking/internal/testutil"
)

// setupTestEngine creates an engine over a fresh SQLite store with a
// deterministic clock and sequential ids.
func setupTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := New(s,
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("task")),
	)
	return e, s
}

// setupTamperedEngine is setupTestEngine plus a second raw connection to
// the same database file, for writing rows the engine would refuse.
func setupTamperedEngine(t *testing.T) (*Engine, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	e := New(s,
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("task")),
	)
	return e, raw
}

var orderSeq atomic.Int64

// minimalRequest returns a request with a unique order item id.
func minimalRequest() task.CreateRequest {
	return task.CreateRequest{
		OrderItemID: fmt.Sprintf("OI-%d", orderSeq.Add(1)),
		ServiceType: "WCHR",
	}
}

// pathTo lists the transitions that take a new task to status.
var pathTo = map[task.Status][]task.Status{
	task.StatusNew:        {},
	task.StatusAssigned:   {task.StatusAssigned},
	task.StatusInProgress: {task.StatusAssigned, task.StatusInProgress},
	task.StatusDone:       {task.StatusAssigned, task.StatusInProgress, task.StatusDone},
	task.StatusFailed:     {task.StatusFailed},
	task.StatusCancelled:  {task.StatusCancelled},
}

// createTaskIn creates a fresh task and walks it to status.
func createTaskIn(t *testing.T, e *Engine, status task.Status) task.Task {
	t.Helper()
	ctx := t.Context()

	tk, err := e.Create(ctx, minimalRequest())
	require.NoError(t, err)
	for _, next := range pathTo[status] {
		tk, err = e.Transition(ctx, tk.ID, next, "SETUP", nil)
		require.NoError(t, err)
	}
	require.Equal(t, status, tk.Status)
	return tk
}

func eventCount(t *testing.T, e *Engine, id string) int {
	t.Helper()
	n, err := e.EventCount(t.Context(), id)
	require.NoError(t, err)
	return n
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
