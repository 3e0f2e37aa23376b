package store

import (
	"context"
	"database/sql"

	"github.com/roach88/tasking/internal/task"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InsertTask persists t together with its CREATED event, unless a task with
// the same (order_item_id, service_type, signature) already exists.
// Returns the stored task and whether it was inserted by this call.
//
// Uses ON CONFLICT DO NOTHING followed by a re-select inside one
// transaction, so two concurrent identical creations converge on one row
// and exactly one CREATED event.
func (s *Store) InsertTask(ctx context.Context, t task.Task, signature string) (task.Task, bool, error) {
	cols, err := EncodeColumns(t)
	if err != nil {
		return task.Task{}, false, task.NewMalformed("task", err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO tasks
		(id, order_item_id, service_type, provider_id, location, flight, customer_hint,
		 status, checklist, sla_due_at, signature, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_item_id, service_type, signature) DO NOTHING
	`,
		t.ID,
		t.OrderItemID,
		t.ServiceType,
		nullableString(t.ProviderID),
		nullableBytes(cols.Location),
		nullableBytes(cols.Flight),
		nullableBytes(cols.CustomerHint),
		string(t.Status),
		string(cols.Checklist),
		nullableTime(t.SLADueAt),
		signature,
		FormatTime(t.CreatedAt),
		FormatTime(t.UpdatedAt),
	)
	if err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task: rows affected", err)
	}

	if rows == 0 {
		existing, err := queryTask(ctx, tx, `
			SELECT `+taskColumns+` FROM tasks
			WHERE order_item_id = ? AND service_type = ? AND signature = ?
		`, "", t.OrderItemID, t.ServiceType, signature)
		if err != nil {
			return task.Task{}, false, err
		}
		if err := tx.Commit(); err != nil {
			return task.Task{}, false, task.NewStoreFailure("insert task: commit", err)
		}
		return existing, false, nil
	}

	created := task.Event{
		TaskID:    t.ID,
		Code:      task.EventCreated,
		ToStatus:  t.Status,
		Timestamp: t.CreatedAt,
	}
	if _, err := insertEvent(ctx, tx, created); err != nil {
		return task.Task{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task: commit", err)
	}

	return t, true, nil
}

// UpdateLocked runs a read-modify-write on one task under the write lock.
// The row is read, fn decides the change, and the status update plus its
// event are committed together. A nil change commits nothing.
//
// Returns NOT_FOUND if the task does not exist; errors from fn are returned
// unchanged.
func (s *Store) UpdateLocked(ctx context.Context, id string, fn task.UpdateFunc) (task.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Task{}, task.NewStoreFailure("update task: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	current, err := queryTask(ctx, tx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id, id)
	if err != nil {
		return task.Task{}, err
	}

	change, err := fn(current)
	if err != nil {
		return task.Task{}, err
	}
	if change == nil {
		return current, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
	`, string(change.Status), FormatTime(change.UpdatedAt), id); err != nil {
		return task.Task{}, task.NewStoreFailure("update task", err)
	}

	ev := change.Event
	ev.TaskID = id
	if _, err := insertEvent(ctx, tx, ev); err != nil {
		return task.Task{}, err
	}

	if err := tx.Commit(); err != nil {
		return task.Task{}, task.NewStoreFailure("update task: commit", err)
	}

	current.Status = change.Status
	current.UpdatedAt = change.UpdatedAt
	return current, nil
}

// insertEvent appends one event row and returns its id.
func insertEvent(ctx context.Context, q querier, ev task.Event) (int64, error) {
	payload, err := EncodeJSON(ev.Payload)
	if err != nil {
		return 0, task.NewMalformed("payload", err.Error())
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO task_events (task_id, code, from_status, to_status, payload, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ev.TaskID,
		ev.Code,
		string(ev.FromStatus),
		string(ev.ToStatus),
		nullableBytes(payload),
		FormatTime(ev.Timestamp),
	)
	if err != nil {
		return 0, task.NewStoreFailure("insert event", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, task.NewStoreFailure("insert event: last insert id", err)
	}
	return id, nil
}
