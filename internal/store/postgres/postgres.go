// Package postgres provides the PostgreSQL implementation of the task store.
//
// It mirrors the SQLite store in internal/store: the same tables, the same
// ordering rules and the same insert-or-select creation. Row locking uses
// SELECT ... FOR UPDATE, so transitions on distinct tasks run in parallel.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/tasking/internal/store"
	"github.com/roach88/tasking/internal/task"
)

const (
	tasksTable  = "tasks"
	eventsTable = "task_events"
)

const taskColumns = `id, order_item_id, service_type, provider_id, location, flight, customer_hint,
	status, checklist, sla_due_at, created_at, updated_at`

// Store implements the engine store contract backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller must run EnsureSchema.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables, indexes and append-only triggers if they
// don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store not initialized")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tasksTable + ` (
    id            TEXT PRIMARY KEY,
    order_item_id TEXT NOT NULL,
    service_type  TEXT NOT NULL,
    provider_id   TEXT,
    location      JSONB,
    flight        JSONB,
    customer_hint JSONB,
    status        TEXT NOT NULL CHECK (status IN ('new', 'assigned', 'in_progress', 'done', 'failed', 'cancelled')),
    checklist     JSONB NOT NULL DEFAULT '[]',
    sla_due_at    TIMESTAMPTZ,
    signature     TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_identity ON ` + tasksTable + ` (order_item_id, service_type, signature)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON ` + tasksTable + ` (created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON ` + tasksTable + ` (status)`,

		`CREATE TABLE IF NOT EXISTS ` + eventsTable + ` (
    id          BIGSERIAL PRIMARY KEY,
    task_id     TEXT NOT NULL REFERENCES ` + tasksTable + `(id),
    code        TEXT NOT NULL,
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL,
    payload     JSONB,
    ts          TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_task ON ` + eventsTable + ` (task_id, ts, id)`,

		`CREATE OR REPLACE FUNCTION tasking_reject_change() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS task_events_append_only ON ` + eventsTable,
		`CREATE TRIGGER task_events_append_only BEFORE UPDATE OR DELETE ON ` + eventsTable + `
    FOR EACH ROW EXECUTE FUNCTION tasking_reject_change()`,
		`DROP TRIGGER IF EXISTS tasks_no_delete ON ` + tasksTable,
		`CREATE TRIGGER tasks_no_delete BEFORE DELETE ON ` + tasksTable + `
    FOR EACH ROW EXECUTE FUNCTION tasking_reject_change()`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

// InsertTask persists t with its CREATED event unless a task with the same
// (order_item_id, service_type, signature) exists; then that task is
// returned with inserted=false.
func (s *Store) InsertTask(ctx context.Context, t task.Task, signature string) (task.Task, bool, error) {
	cols, err := store.EncodeColumns(t)
	if err != nil {
		return task.Task{}, false, task.NewMalformed("task", err.Error())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task: begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO `+tasksTable+` (
    id, order_item_id, service_type, provider_id, location, flight, customer_hint,
    status, checklist, sla_due_at, signature, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (order_item_id, service_type, signature) DO NOTHING`,
		t.ID, t.OrderItemID, t.ServiceType, t.ProviderID,
		cols.Location, cols.Flight, cols.CustomerHint,
		string(t.Status), cols.Checklist, t.SLADueAt, signature,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task", err)
	}

	if tag.RowsAffected() == 0 {
		row := tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM `+tasksTable+`
WHERE order_item_id = $1 AND service_type = $2 AND signature = $3`,
			t.OrderItemID, t.ServiceType, signature)
		existing, err := scanTask(row)
		if err != nil {
			return task.Task{}, false, mapError("select existing task", "", err)
		}
		if err := tx.Commit(ctx); err != nil {
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
	if err := insertEvent(ctx, tx, created); err != nil {
		return task.Task{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return task.Task{}, false, task.NewStoreFailure("insert task: commit", err)
	}
	return t, true, nil
}

// UpdateLocked reads the task with SELECT ... FOR UPDATE, lets fn decide the
// change, and commits the status update and its event together.
func (s *Store) UpdateLocked(ctx context.Context, id string, fn task.UpdateFunc) (task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return task.Task{}, task.NewStoreFailure("update task: begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM `+tasksTable+` WHERE id = $1 FOR UPDATE`, id)
	current, err := scanTask(row)
	if err != nil {
		return task.Task{}, mapError("lock task", id, err)
	}

	change, err := fn(current)
	if err != nil {
		return task.Task{}, err
	}
	if change == nil {
		return current, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE `+tasksTable+` SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(change.Status), change.UpdatedAt); err != nil {
		return task.Task{}, task.NewStoreFailure("update task", err)
	}

	ev := change.Event
	ev.TaskID = id
	if err := insertEvent(ctx, tx, ev); err != nil {
		return task.Task{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return task.Task{}, task.NewStoreFailure("update task: commit", err)
	}

	current.Status = change.Status
	current.UpdatedAt = change.UpdatedAt.UTC()
	return current, nil
}

// GetTask returns the task with the given id, or NOT_FOUND.
func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM `+tasksTable+` WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return task.Task{}, mapError("get task", id, err)
	}
	return t, nil
}

// FindCandidates returns every task sharing (order_item_id, service_type),
// oldest first.
func (s *Store) FindCandidates(ctx context.Context, orderItemID, serviceType string) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM `+tasksTable+`
WHERE order_item_id = $1 AND service_type = $2
ORDER BY created_at ASC, id ASC`, orderItemID, serviceType)
	if err != nil {
		return nil, task.NewStoreFailure("query candidates", err)
	}
	return collectTasks(rows)
}

// ListTasks returns tasks whose status is in statuses, most recently created
// first. An empty filter returns all tasks.
func (s *Store) ListTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM ` + tasksTable
	var args []any
	if len(statuses) > 0 {
		filter := make([]string, len(statuses))
		for i, st := range statuses {
			filter[i] = string(st)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, filter)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, task.NewStoreFailure("query tasks", err)
	}
	return collectTasks(rows)
}

// ListEvents returns a task's events in (ts, id) ascending order.
func (s *Store) ListEvents(ctx context.Context, taskID string) ([]task.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, task_id, code, from_status, to_status, payload, ts
FROM `+eventsTable+`
WHERE task_id = $1
ORDER BY ts ASC, id ASC`, taskID)
	if err != nil {
		return nil, task.NewStoreFailure("query events", err)
	}
	defer rows.Close()

	events := []task.Event{}
	for rows.Next() {
		var (
			ev       task.Event
			from, to string
			payload  []byte
		)
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.Code, &from, &to, &payload, &ev.Timestamp); err != nil {
			return nil, task.NewStoreFailure("scan event", err)
		}
		ev.FromStatus = task.Status(from)
		ev.ToStatus = task.Status(to)
		ev.Timestamp = ev.Timestamp.UTC()
		if err := store.DecodeJSON(payload, &ev.Payload); err != nil {
			return nil, task.NewStoreFailure("decode event payload", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, task.NewStoreFailure("iterate events", err)
	}
	return events, nil
}

// ListTaskIDs returns every task id, oldest first.
func (s *Store) ListTaskIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM `+tasksTable+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, task.NewStoreFailure("query task ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, task.NewStoreFailure("scan task ids", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// CountEvents returns the number of events recorded for a task.
func (s *Store) CountEvents(ctx context.Context, taskID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+eventsTable+` WHERE task_id = $1`, taskID).Scan(&n); err != nil {
		return 0, task.NewStoreFailure("count events", err)
	}
	return n, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev task.Event) error {
	payload, err := store.EncodeJSON(ev.Payload)
	if err != nil {
		return task.NewMalformed("payload", err.Error())
	}

	_, err = tx.Exec(ctx, `INSERT INTO `+eventsTable+` (task_id, code, from_status, to_status, payload, ts)
VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.TaskID, ev.Code, string(ev.FromStatus), string(ev.ToStatus), payload, ev.Timestamp)
	if err != nil {
		return task.NewStoreFailure("insert event", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (task.Task, error) {
	var (
		t                              task.Task
		status                         string
		location, flight, customerHint []byte
		checklist                      []byte
		slaDueAt                       *time.Time
	)

	err := row.Scan(
		&t.ID, &t.OrderItemID, &t.ServiceType, &t.ProviderID,
		&location, &flight, &customerHint,
		&status, &checklist, &slaDueAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, err
	}

	t.Status = task.Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if slaDueAt != nil {
		utc := slaDueAt.UTC()
		t.SLADueAt = &utc
	}

	cols := store.Columns{Location: location, Flight: flight, CustomerHint: customerHint, Checklist: checklist}
	if err := store.DecodeColumns(&t, cols); err != nil {
		return task.Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

func collectTasks(rows pgx.Rows) ([]task.Task, error) {
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, task.NewStoreFailure("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, task.NewStoreFailure("iterate tasks", err)
	}
	return tasks, nil
}

// mapError turns pgx.ErrNoRows into NOT_FOUND and anything else into
// STORE_FAILURE. Lock timeouts (SQLSTATE 55P03) surface as store failures.
func mapError(op, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return task.NewNotFound(id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return task.NewStoreFailure(fmt.Sprintf("%s (sqlstate %s)", op, pgErr.Code), err)
	}
	return task.NewStoreFailure(op, err)
}
