package postgres

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasking/internal/engine"
	"github.com/roach88/tasking/internal/task"
)

// Compile-time check that Store satisfies the engine's store contract.
var _ engine.Store = (*Store)(nil)

const dsnEnv = "TASKING_TEST_POSTGRES_DSN"

// openTestStore connects to the database named by TASKING_TEST_POSTGRES_DSN.
// Rows can't be deleted, so every test works on fresh order item ids.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	s, err := Open(t.Context(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func uniqueID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func newTask(id, orderItemID string, at time.Time) task.Task {
	at = at.UTC().Truncate(time.Microsecond)
	return task.Task{
		ID:          id,
		OrderItemID: orderItemID,
		ServiceType: "WCHR",
		Status:      task.StatusNew,
		Checklist:   []task.ChecklistItem{},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureSchema(t.Context()))
	require.NoError(t, s.EnsureSchema(t.Context()))
}

func TestInsertTask_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	provider := "P-7"
	sla := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := newTask(uniqueID("t"), uniqueID("OI"), time.Now())
	in.ProviderID = &provider
	in.Location = &task.Location{Terminal: "T1", Gate: "B12"}
	in.CustomerHint = map[string]any{"nameMasked": "J*** D**"}
	in.Checklist = []task.ChecklistItem{{Key: "a", Title: "Board", Required: true}}
	in.SLADueAt = &sla

	_, inserted, err := s.InsertTask(ctx, in, "sig")
	require.NoError(t, err)
	require.True(t, inserted)

	got, err := s.GetTask(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "P-7", *got.ProviderID)
	assert.Equal(t, in.Location, got.Location)
	assert.Equal(t, in.CustomerHint, got.CustomerHint)
	assert.Equal(t, in.Checklist, got.Checklist)
	assert.True(t, sla.Equal(*got.SLADueAt))
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))

	events, err := s.ListEvents(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, task.EventCreated, events[0].Code)
	assert.Equal(t, task.StatusNew, events[0].ToStatus)
	assert.Nil(t, events[0].Payload)
}

func TestInsertTask_DuplicateReturnsExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	oi := uniqueID("OI")

	first := newTask(uniqueID("t"), oi, time.Now())
	_, inserted, err := s.InsertTask(ctx, first, "sig")
	require.NoError(t, err)
	require.True(t, inserted)

	got, inserted, err := s.InsertTask(ctx, newTask(uniqueID("t"), oi, time.Now()), "sig")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, got.ID)

	n, err := s.CountEvents(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertTask_ConcurrentIdenticalConverge(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	oi := uniqueID("OI")

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := s.InsertTask(ctx, newTask(uniqueID("t"), oi, time.Now()), "sig")
			assert.NoError(t, err)
			ids[i] = got.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	candidates, err := s.FindCandidates(ctx, oi, "WCHR")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestUpdateLocked_AppliesChange(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	in := newTask(uniqueID("t"), uniqueID("OI"), time.Now())
	_, _, err := s.InsertTask(ctx, in, "sig")
	require.NoError(t, err)

	at := in.CreatedAt.Add(time.Second)
	got, err := s.UpdateLocked(ctx, in.ID, func(current task.Task) (*task.Change, error) {
		return &task.Change{
			Status:    task.StatusAssigned,
			UpdatedAt: at,
			Event: task.Event{
				Code:       "ACCEPT",
				FromStatus: current.Status,
				ToStatus:   task.StatusAssigned,
				Payload:    map[string]any{"by": "ops"},
				Timestamp:  at,
			},
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, task.StatusAssigned, got.Status)

	events, err := s.ListEvents(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ACCEPT", events[1].Code)
	assert.Equal(t, map[string]any{"by": "ops"}, events[1].Payload)
}

func TestUpdateLocked_NilChangeWritesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	in := newTask(uniqueID("t"), uniqueID("OI"), time.Now())
	_, _, err := s.InsertTask(ctx, in, "sig")
	require.NoError(t, err)

	got, err := s.UpdateLocked(ctx, in.ID, func(task.Task) (*task.Change, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, task.StatusNew, got.Status)

	n, err := s.CountEvents(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetTask_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTask(t.Context(), uniqueID("missing"))
	assert.True(t, task.IsNotFound(err))

	_, err = s.UpdateLocked(t.Context(), uniqueID("missing"), func(task.Task) (*task.Change, error) {
		t.Fatal("fn must not run for a missing task")
		return nil, nil
	})
	assert.True(t, task.IsNotFound(err))
}

func TestEngine_LifecycleOnPostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	e := engine.New(s)

	created, err := e.Create(ctx, task.CreateRequest{OrderItemID: uniqueID("OI"), ServiceType: "WCHR"})
	require.NoError(t, err)

	for _, target := range []task.Status{task.StatusAssigned, task.StatusInProgress, task.StatusDone} {
		_, err := e.Transition(ctx, created.ID, target, "STEP", nil)
		require.NoError(t, err)
	}

	v, err := e.Verify(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, v.OK(), v.Problem)
	assert.Equal(t, task.StatusDone, v.Replayed)
}
