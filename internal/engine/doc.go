// Package engine implements the task lifecycle engine: idempotent task
// creation, the status state machine, and event-log replay.
//
// ARCHITECTURE:
//
// The engine holds no task state. Every operation is one store transaction
// and the store is the only source of truth across concurrent callers, so
// several engines (or processes) may share one database.
//
// Creation (ingest.go):
//  1. Validate the request shape (MALFORMED_PAYLOAD, no store access)
//  2. Build the candidate task and its signature
//  3. Read every task sharing (order_item_id, service_type)
//  4. Return the first whose recomputed signature matches
//  5. Otherwise insert the task and its CREATED event atomically
//
// The store enforces UNIQUE(order_item_id, service_type, signature), so two
// concurrent identical requests that both miss in step 4 still converge on
// one task.
//
// Transitions (transition.go):
// The store locks the task row for the whole check-and-apply. A
// self-transition is a no-op with no event; a target outside the allow-list
// fails with INVALID_TRANSITION; anything else updates status and appends
// one event in the same transaction.
//
// Replay (replay.go):
// Events carry from/to statuses, so a task's status history can be rebuilt
// from its events alone and checked against the stored row.
//
// Errors are *task.Error values; branch on task.CodeOf(err).
package engine
