package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/tasking/internal/task"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code task.ErrorCode) int {
	switch code {
	case task.ErrCodeNotFound:
		return http.StatusNotFound
	case task.ErrCodeInvalidTransition:
		return http.StatusConflict
	case task.ErrCodeMalformedPayload:
		return http.StatusUnprocessableEntity
	case task.ErrCodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var te *task.Error
	if !errors.As(err, &te) {
		s.logger.Error("unhandled error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorPayload{
			Code:    "INTERNAL",
			Message: "internal error",
		}})
		return
	}

	status := statusFor(te.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "code", te.Code, "error", err)
	}

	body := errorBody{Error: errorPayload{
		Code:    string(te.Code),
		Message: te.Message,
		Details: te.Details(),
	}}
	if len(body.Error.Details) == 0 {
		body.Error.Details = nil
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
