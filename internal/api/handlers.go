package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/tasking/internal/schema"
	"github.com/roach88/tasking/internal/task"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.writeError(w, r, task.NewStoreFailure("ping", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	statuses, err := task.ParseStatuses(r.URL.Query()["status"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tasks, err := s.engine.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.schema.ValidateCreate(body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req task.CreateRequest
	if err := decode(body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, created, err := s.engine.CreateWithOutcome(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// action handles the fixed-target endpoints. When def is set the body is
// validated against it and recorded as the event payload; an empty body is
// accepted only where def allows an empty object.
func (s *Server) action(target task.Status, code, def string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if def != "" {
			body, err := readBody(w, r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if len(bytes.TrimSpace(body)) == 0 {
				body = []byte("{}")
			}
			if err := s.schema.Validate(def, body); err != nil {
				s.writeError(w, r, err)
				return
			}
			if err := decode(body, &payload); err != nil {
				s.writeError(w, r, err)
				return
			}
			if len(payload) == 0 {
				payload = nil
			}
		}

		t, err := s.engine.Transition(r.Context(), chi.URLParam(r, "id"), target, code, payload)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

type transitionRequest struct {
	Status  string         `json:"status"`
	Code    string         `json:"code"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.schema.Validate(schema.Transition, body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req transitionRequest
	if err := decode(body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := task.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.engine.Transition(r.Context(), chi.URLParam(r, "id"), target, req.Code, req.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, task.NewMalformed("body", fmt.Sprintf("read body: %v", err))
	}
	return body, nil
}

// decode unmarshals a body that already passed schema validation. Numbers
// are kept as json.Number so payloads round-trip without float rounding.
func decode(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return task.NewMalformed("body", fmt.Sprintf("decode body: %v", err))
	}
	return nil
}
