package task

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the error type returned by every engine and store operation.
// Callers branch on Code rather than on message text.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// TaskID identifies the affected task, when known.
	TaskID string

	// Current and Target are set for INVALID_TRANSITION.
	Current Status
	Target  Status

	// Allowed lists the statuses reachable from Current, for
	// INVALID_TRANSITION.
	Allowed []Status

	// Field names the offending input field for MALFORMED_PAYLOAD.
	Field string

	// Err is the underlying cause, typically a driver error.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the referenced task does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTransition indicates the target status is not reachable
	// from the current status.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeMalformedPayload indicates input failed shape validation.
	ErrCodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"

	// ErrCodeStoreFailure indicates the backing store failed: connection
	// loss, lock wait timeout, constraint violation.
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Code == ErrCodeInvalidTransition:
		return fmt.Sprintf("%s: %s (task=%s, current=%s, target=%s)", e.Code, e.Message, e.TaskID, e.Current, e.Target)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	case e.TaskID != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (task=%s): %v", e.Code, e.Message, e.TaskID, e.Err)
	case e.TaskID != "":
		return fmt.Sprintf("%s: %s (task=%s)", e.Code, e.Message, e.TaskID)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the whole operation may succeed.
// Only store failures are transient; the engine never retries internally.
func (e *Error) Retryable() bool { return e.Code == ErrCodeStoreFailure }

// Details returns the structured fields of the error for API responses.
func (e *Error) Details() map[string]string {
	d := map[string]string{}
	if e.TaskID != "" {
		d["task_id"] = e.TaskID
	}
	if e.Current != "" {
		d["current"] = string(e.Current)
	}
	if e.Target != "" {
		d["target"] = string(e.Target)
	}
	if len(e.Allowed) > 0 {
		allowed := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			allowed[i] = string(s)
		}
		d["allowed"] = strings.Join(allowed, ",")
	}
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// NewNotFound creates a NOT_FOUND error for a task id.
func NewNotFound(id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: "task not found",
		TaskID:  id,
	}
}

// NewInvalidTransition creates an INVALID_TRANSITION error.
func NewInvalidTransition(id string, current, target Status) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", current, target),
		TaskID:  id,
		Current: current,
		Target:  target,
	}
}

// NewMalformed creates a MALFORMED_PAYLOAD error for a field.
func NewMalformed(field, msg string) *Error {
	return &Error{
		Code:    ErrCodeMalformedPayload,
		Message: msg,
		Field:   field,
	}
}

// NewStoreFailure wraps a store error. A nil err yields nil.
// Errors that already carry a code are returned unchanged.
func NewStoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{
		Code:    ErrCodeStoreFailure,
		Message: op,
		Err:     err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsNotFound returns true if the error is a NOT_FOUND error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsInvalidTransition returns true if the error is an INVALID_TRANSITION error.
func IsInvalidTransition(err error) bool { return CodeOf(err) == ErrCodeInvalidTransition }

// IsMalformed returns true if the error is a MALFORMED_PAYLOAD error.
func IsMalformed(err error) bool { return CodeOf(err) == ErrCodeMalformedPayload }

// IsStoreFailure returns true if the error is a STORE_FAILURE error.
func IsStoreFailure(err error) bool { return CodeOf(err) == ErrCodeStoreFailure }
