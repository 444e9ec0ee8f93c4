// Package api serves the pet over HTTP. GET endpoints are open (anyone
// local can check on the pet); mutating endpoints require a bearer token
// when one is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tamasan/deskpet/internal/persistence"
	"github.com/tamasan/deskpet/internal/pet"
	"github.com/tamasan/deskpet/internal/sched"
)

const (
	historyLimitDefault = 50
	historyLimitMax     = 200

	// Mutations per client per minute. Generous for a human, stops a
	// misbehaving script from spamming interactions.
	mutationRate = 60
)

// Server exposes the coordinator, scheduler and store over HTTP.
type Server struct {
	coord   *pet.Coordinator
	tasks   *sched.Service
	store   *persistence.Store
	hub     *Hub
	limiter *RateLimiter
	log     *slog.Logger
	token   string
}

// NewServer wires the HTTP layer. An empty token leaves mutations open,
// which is the expected setup for a loopback-only daemon.
func NewServer(coord *pet.Coordinator, tasks *sched.Service, store *persistence.Store, logger *slog.Logger, token string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		coord:   coord,
		tasks:   tasks,
		store:   store,
		hub:     NewHub(logger),
		limiter: NewRateLimiter(mutationRate, time.Minute),
		log:     logger,
		token:   token,
	}
}

// StreamEvents pumps coordinator events to connected websocket clients.
// It blocks until ctx is done or the channel closes; run it in a goroutine.
func (s *Server) StreamEvents(ctx context.Context, events <-chan pet.Event) {
	s.hub.Run(ctx, events)
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/health"))
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/interactions", s.handleInteractions)
		r.Get("/work", s.handleWorkStatus)
		r.Get("/request", s.handleRequest)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Get("/tasks/{id}/executions", s.handleExecutions)
		r.Get("/history/work", s.handleWorkHistory)
		r.Get("/history/ledger", s.handleLedger)
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(s.limiter.Middleware)
			r.Post("/tick", s.handleTick)
			r.Post("/interact", s.handleInteract)
			r.Post("/work", s.handleStartWork)
			r.Delete("/work", s.handleCancelWork)
			r.Post("/request/{id}/respond", s.handleRespond)
			r.Post("/tasks", s.handleCreateTask)
			r.Put("/tasks/{id}", s.handleUpdateTask)
			r.Delete("/tasks/{id}", s.handleDeleteTask)
			r.Post("/tasks/{id}/run", s.handleRunTask)
			r.Post("/tasks/{id}/enable", s.handleEnableTask)
		})
	})

	return r
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.token
}

// requireAuth gates mutations behind the bearer token. No token configured
// means no gate.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set DESKPET_CORS_ORIGINS to a comma-separated list of extra origins;
// localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("DESKPET_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseLimit(r *http.Request) int {
	limit := historyLimitDefault
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > historyLimitMax {
		limit = historyLimitMax
	}
	return limit
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"interactions": s.coord.Interactions()})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Tick())
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := s.coord.Interact(req.Kind)
	switch {
	case errors.Is(err, pet.ErrUnknownInteraction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pet.ErrCooldown):
		w.Header().Set("Retry-After", strconv.Itoa(int(res.Remaining.Seconds())+1))
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "interaction on cooldown",
			"kind":      req.Kind,
			"remaining": res.Remaining,
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "interaction failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleWorkStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.WorkStatus())
}

func (s *Server) handleStartWork(w http.ResponseWriter, r *http.Request) {
	task, err := s.coord.StartWork()
	switch {
	case errors.Is(err, pet.ErrWorkDisabled),
		errors.Is(err, pet.ErrWorkActive),
		errors.Is(err, pet.ErrTooTired),
		errors.Is(err, pet.ErrDailyCap):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "work start failed")
	default:
		writeJSON(w, http.StatusOK, task)
	}
}

func (s *Server) handleCancelWork(w http.ResponseWriter, r *http.Request) {
	task, err := s.coord.CancelWork()
	switch {
	case errors.Is(err, pet.ErrNoWork):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "work cancel failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": task})
	}
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"request": s.coord.PendingRequest()})
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	err := s.coord.RespondToRequest(chi.URLParam(r, "id"), req.Accepted)
	switch {
	case errors.Is(err, pet.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "respond failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"accepted": req.Accepted})
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tasks failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, sched.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "get task failed")
	default:
		writeJSON(w, http.StatusOK, task)
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task sched.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	created, err := s.tasks.Create(task)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var task sched.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	task.ID = chi.URLParam(r, "id")

	updated, err := s.tasks.Update(task)
	switch {
	case errors.Is(err, sched.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := s.tasks.Delete(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, sched.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "delete task failed")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	exec, err := s.tasks.RunNow(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, sched.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "run task failed")
	default:
		writeJSON(w, http.StatusOK, exec)
	}
}

func (s *Server) handleEnableTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.tasks.Enable(chi.URLParam(r, "id"), req.Enabled)
	switch {
	case errors.Is(err, sched.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "enable task failed")
	default:
		writeJSON(w, http.StatusOK, task)
	}
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := s.tasks.History(chi.URLParam(r, "id"), parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read executions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}

func (s *Server) handleWorkHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentWork(parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read work history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work": recs})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.RecentLedger(parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read ledger failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ledger": entries})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeHTTP(w, r)
}
