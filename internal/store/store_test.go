package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"tasks", "task_events"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDSN(t *testing.T) {
	if got := dsn("a.db"); got != "a.db?_txlock=immediate" {
		t.Errorf("dsn() = %q", got)
	}
	if got := dsn("file:a.db?cache=shared"); got != "file:a.db?cache=shared&_txlock=immediate" {
		t.Errorf("dsn() = %q", got)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

// Schema tests

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"tasks": {
			"id", "order_item_id", "service_type", "provider_id", "location", "flight",
			"customer_hint", "status", "checklist", "sla_due_at", "signature",
			"created_at", "updated_at",
		},
		"task_events": {
			"id", "task_id", "code", "from_status", "to_status", "payload", "ts",
		},
	}

	for table, expected := range tests {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "tasks")
	for _, idx := range []string{"idx_tasks_identity", "idx_tasks_created", "idx_tasks_status"} {
		if !contains(indexes, idx) {
			t.Errorf("tasks table missing index %q", idx)
		}
	}

	if !contains(getTableIndexes(t, s.db, "task_events"), "idx_task_events_task") {
		t.Error("task_events table missing index idx_task_events_task")
	}
}

// Constraint tests

func TestConstraint_StatusEnumeration(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, order_item_id, service_type, status, signature, created_at, updated_at)
		VALUES ('t1', 'OI-1', 'WCHR', 'archived', 'sig', 'x', 'x')
	`)
	if err == nil {
		t.Error("expected CHECK constraint error for unknown status")
	}
}

func TestConstraint_EventRequiresTask(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO task_events (task_id, code, to_status, ts)
		VALUES ('missing', 'CREATED', 'new', 'x')
	`)
	if err == nil {
		t.Error("expected foreign key error for event without task")
	}
}

func TestConstraint_AppendOnly(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.InsertTask(t.Context(), createTestTask("t1", "OI-1", 0), "sig")
	if err != nil {
		t.Fatalf("InsertTask() failed: %v", err)
	}

	statements := []string{
		"UPDATE task_events SET code = 'EDITED'",
		"DELETE FROM task_events",
		"DELETE FROM tasks",
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err == nil {
			t.Errorf("%q succeeded, expected trigger to abort", stmt)
		}
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
