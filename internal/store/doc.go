// Package store provides SQLite-backed durable storage for tasks and their
// audit events.
//
// # Tables
//
//   - tasks: one row per distinct (order_item_id, service_type, signature),
//     mutated in place, never deleted
//   - task_events: append-only log; triggers reject UPDATE and DELETE
//
// # Locking
//
// SQLite has no row locks. Every transaction is opened with BEGIN IMMEDIATE
// (the _txlock=immediate DSN parameter) over a single-connection pool, so a
// read-modify-write in UpdateLocked holds the write lock from its first
// read until commit. Plain reads share the same connection and therefore
// observe only committed state.
//
// # Deterministic Ordering
//
//   - ListTasks: ORDER BY created_at DESC, id DESC
//   - ListEvents: ORDER BY ts ASC, id ASC
//   - FindCandidates: ORDER BY created_at ASC, id ASC
//
// Timestamps are stored as fixed-width UTC text so lexical order is
// chronological order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Driver errors are returned as task.Error values with code STORE_FAILURE.
package store
