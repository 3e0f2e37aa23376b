package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/roach88/tasking/internal/task"
)

const taskColumns = `id, order_item_id, service_type, provider_id, location, flight, customer_hint,
	status, checklist, sla_due_at, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// GetTask returns the task with the given id, or NOT_FOUND.
func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	return queryTask(ctx, s.db, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id, id)
}

// FindCandidates returns every task sharing (order_item_id, service_type),
// oldest first. This is a plain read; ingestion relies on the identity
// index, not on a lock, to reject concurrent duplicates.
//
// Returns empty slice (not nil) if no candidates exist.
func (s *Store) FindCandidates(ctx context.Context, orderItemID, serviceType string) ([]task.Task, error) {
	return queryTasks(ctx, s.db, `
		SELECT `+taskColumns+` FROM tasks
		WHERE order_item_id = ? AND service_type = ?
		ORDER BY created_at ASC, id ASC
	`, orderItemID, serviceType)
}

// ListTasks returns tasks whose status is in statuses, most recently created
// first (created_at DESC, id DESC). An empty filter returns all tasks.
//
// Returns empty slice (not nil) if nothing matches.
func (s *Store) ListTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return queryTasks(ctx, s.db, query, args...)
}

// ListEvents returns a task's events in (ts, id) ascending order.
//
// Returns empty slice (not nil) if the task has no events.
func (s *Store) ListEvents(ctx context.Context, taskID string) ([]task.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, code, from_status, to_status, payload, ts
		FROM task_events
		WHERE task_id = ?
		ORDER BY ts ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, task.NewStoreFailure("query events", err)
	}
	defer rows.Close()

	events := []task.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, task.NewStoreFailure("iterate events", err)
	}

	return events, nil
}

// queryTask runs a single-row task query. id is reported in NOT_FOUND errors.
func queryTask(ctx context.Context, q querier, query, id string, args ...any) (task.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, task.NewNotFound(id)
	}
	return t, err
}

func queryTasks(ctx context.Context, q querier, query string, args ...any) ([]task.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, task.NewStoreFailure("query tasks", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, task.NewStoreFailure("iterate tasks", err)
	}

	return tasks, nil
}

// scanTask scans one task row. sql.ErrNoRows is returned unwrapped.
func scanTask(row rowScanner) (task.Task, error) {
	var (
		t                              task.Task
		providerID, slaDueAt           sql.NullString
		location, flight, customerHint sql.NullString
		status, checklist              string
		createdAt, updatedAt           string
	)

	err := row.Scan(
		&t.ID,
		&t.OrderItemID,
		&t.ServiceType,
		&providerID,
		&location,
		&flight,
		&customerHint,
		&status,
		&checklist,
		&slaDueAt,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, err
	}
	if err != nil {
		return task.Task{}, task.NewStoreFailure("scan task", err)
	}

	t.Status = task.Status(status)
	if providerID.Valid {
		t.ProviderID = &providerID.String
	}

	cols := Columns{
		Location:     nullStringBytes(location),
		Flight:       nullStringBytes(flight),
		CustomerHint: nullStringBytes(customerHint),
		Checklist:    []byte(checklist),
	}
	if err := DecodeColumns(&t, cols); err != nil {
		return task.Task{}, task.NewStoreFailure("decode task", err)
	}

	if slaDueAt.Valid {
		ts, err := ParseTime(slaDueAt.String)
		if err != nil {
			return task.Task{}, task.NewStoreFailure("decode task", err)
		}
		t.SLADueAt = &ts
	}
	if t.CreatedAt, err = ParseTime(createdAt); err != nil {
		return task.Task{}, task.NewStoreFailure("decode task", err)
	}
	if t.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return task.Task{}, task.NewStoreFailure("decode task", err)
	}

	return t, nil
}

func scanEvent(row rowScanner) (task.Event, error) {
	var (
		ev                 task.Event
		fromStatus, toStat string
		payload            sql.NullString
		ts                 string
	)

	if err := row.Scan(&ev.ID, &ev.TaskID, &ev.Code, &fromStatus, &toStat, &payload, &ts); err != nil {
		return task.Event{}, task.NewStoreFailure("scan event", err)
	}

	ev.FromStatus = task.Status(fromStatus)
	ev.ToStatus = task.Status(toStat)
	if err := DecodeJSON(nullStringBytes(payload), &ev.Payload); err != nil {
		return task.Event{}, task.NewStoreFailure("decode event payload", err)
	}

	var err error
	if ev.Timestamp, err = ParseTime(ts); err != nil {
		return task.Event{}, task.NewStoreFailure("decode event", err)
	}

	return ev, nil
}

func nullStringBytes(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}
