package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/tasking/internal/task"
)

// Store is the persistence contract the engine runs against.
// Implemented by store.Store (SQLite) and postgres.Store.
//
// Implementations return *task.Error values: NOT_FOUND for missing tasks
// and STORE_FAILURE for driver errors.
type Store interface {
	// InsertTask inserts t and its CREATED event unless a task with the
	// same (order_item_id, service_type, signature) exists, in which case
	// that task is returned with inserted=false.
	InsertTask(ctx context.Context, t task.Task, signature string) (stored task.Task, inserted bool, err error)

	// FindCandidates is a plain read of all tasks sharing
	// (order_item_id, service_type).
	FindCandidates(ctx context.Context, orderItemID, serviceType string) ([]task.Task, error)

	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, statuses []task.Status) ([]task.Task, error)
	ListEvents(ctx context.Context, taskID string) ([]task.Event, error)
	ListTaskIDs(ctx context.Context) ([]string, error)
	CountEvents(ctx context.Context, taskID string) (int, error)

	// UpdateLocked runs fn on the current row while holding an exclusive
	// lock on it, then persists the returned change and its event.
	UpdateLocked(ctx context.Context, id string, fn task.UpdateFunc) (task.Task, error)
}

// Engine executes task operations against a Store.
//
// Thread-safety: Engine is safe for concurrent use. Per-task ordering is
// provided by the store's row lock, not by the engine.
type Engine struct {
	store  Store
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the task id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// New creates an Engine over s. The caller owns s and closes it.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Get returns the task with the given id, or NOT_FOUND.
func (e *Engine) Get(ctx context.Context, id string) (task.Task, error) {
	if id == "" {
		return task.Task{}, task.NewNotFound(id)
	}
	return e.store.GetTask(ctx, id)
}

// List returns tasks whose status is one of statuses, most recently created
// first. No statuses means all tasks.
func (e *Engine) List(ctx context.Context, statuses ...task.Status) ([]task.Task, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, task.NewMalformed("status", "unknown status "+string(s))
		}
	}
	return e.store.ListTasks(ctx, statuses)
}

// Events returns a task's audit log in (timestamp, id) order.
// Returns NOT_FOUND if the task does not exist.
func (e *Engine) Events(ctx context.Context, id string) ([]task.Event, error) {
	if _, err := e.Get(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListEvents(ctx, id)
}

// EventCount returns the number of events recorded for a task.
// Returns NOT_FOUND if the task does not exist.
func (e *Engine) EventCount(ctx context.Context, id string) (int, error) {
	if _, err := e.Get(ctx, id); err != nil {
		return 0, err
	}
	return e.store.CountEvents(ctx, id)
}
