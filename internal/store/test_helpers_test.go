package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tasking/internal/task"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestTask creates a task in status new with minimal required fields.
// offset orders tasks by creation time.
func createTestTask(id, orderItemID string, offset int) task.Task {
	ts := baseTime.Add(time.Duration(offset) * time.Second)
	return task.Task{
		ID:          id,
		OrderItemID: orderItemID,
		ServiceType: "WCHR",
		Status:      task.StatusNew,
		Checklist:   []task.ChecklistItem{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithCancel(t.Context())
}
