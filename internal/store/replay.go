package store

import (
	"context"

	"github.com/roach88/tasking/internal/task"
)

// ListTaskIDs returns every task id, oldest first (created_at ASC, id ASC).
// Used by replay verification to walk the whole store deterministically.
//
// Returns empty slice (not nil) if the store is empty.
func (s *Store) ListTaskIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM tasks ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, task.NewStoreFailure("query task ids", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, task.NewStoreFailure("scan task id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, task.NewStoreFailure("iterate task ids", err)
	}

	return ids, nil
}

// CountEvents returns the number of events recorded for a task.
func (s *Store) CountEvents(ctx context.Context, taskID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_events WHERE task_id = ?
	`, taskID).Scan(&n)
	if err != nil {
		return 0, task.NewStoreFailure("count events", err)
	}
	return n, nil
}
