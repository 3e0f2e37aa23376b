// Package api exposes the task engine over HTTP.
//
// Routes:
//
//	GET  /health
//	GET  /tasks?status=new&status=assigned
//	POST /tasks                      201 created, 200 existing equivalent task
//	GET  /tasks/{id}
//	GET  /tasks/{id}/events
//	POST /tasks/{id}/accept          -> assigned     ACCEPTED
//	POST /tasks/{id}/start           -> in_progress  STARTED
//	POST /tasks/{id}/scan            -> in_progress  SCANNED
//	POST /tasks/{id}/complete        -> done         COMPLETED
//	POST /tasks/{id}/fail            -> failed       FAILED
//	POST /tasks/{id}/cancel          -> cancelled    CANCELLED
//	POST /tasks/{id}/transition      generic {status, code, payload}
//
// Errors are returned as {"error": {"code", "message", "details"}} with
// NOT_FOUND=404, INVALID_TRANSITION=409, MALFORMED_PAYLOAD=422 and
// STORE_FAILURE=503.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/tasking/internal/engine"
	"github.com/roach88/tasking/internal/schema"
	"github.com/roach88/tasking/internal/task"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports store health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	engine *engine.Engine
	schema *schema.Validator
	pinger Pinger
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPinger makes /health check the store.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// New creates a Server over e.
func New(e *engine.Engine, v *schema.Validator, opts ...Option) *Server {
	s := &Server{
		engine: e,
		schema: v,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.listTasks)
		r.Post("/", s.createTask)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Get("/events", s.listEvents)

			r.Post("/accept", s.action(task.StatusAssigned, "ACCEPTED", ""))
			r.Post("/start", s.action(task.StatusInProgress, "STARTED", ""))
			r.Post("/scan", s.action(task.StatusInProgress, "SCANNED", schema.Scan))
			r.Post("/complete", s.action(task.StatusDone, "COMPLETED", ""))
			r.Post("/fail", s.action(task.StatusFailed, "FAILED", schema.Fail))
			r.Post("/cancel", s.action(task.StatusCancelled, "CANCELLED", schema.Cancel))
			r.Post("/transition", s.transition)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
