// Package webserver serves the simulated training API: job creation over
// HTTP, per-job snapshot streams over WebSocket and a server-sent lifecycle
// feed.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zsprackett/trainwatch/internal/db"
	"github.com/zsprackett/trainwatch/internal/events"
	"github.com/zsprackett/trainwatch/internal/simulator"
	"github.com/zsprackett/trainwatch/internal/training"
)

type Config struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

type Server struct {
	store  *db.DB
	sim    *simulator.Simulator
	cfg    Config
	feed   *Feed
	logger *slog.Logger
	newID  func() string
}

func New(store *db.DB, sim *simulator.Simulator, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		store:  store,
		sim:    sim,
		cfg:    cfg,
		feed:   NewFeed(),
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Feed returns the lifecycle broadcaster.
func (s *Server) Feed() *Feed {
	return s.feed
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /api/v1/training/start", s.handleStart)
	mux.HandleFunc("GET /api/v1/training", s.handleJobs)
	mux.HandleFunc("GET /api/v1/training/{id}", s.handleJob)
	mux.HandleFunc("GET /api/v1/training/{id}/events", s.handleJobEvents)
	mux.HandleFunc("GET /ws/training/{id}", s.handleStream)
	mux.Handle("GET /events", s.feed)
	return corsMiddleware(s.cfg.AllowedOrigins, mux)
}

// ListenAndServe binds the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webserver: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully. Request contexts derive from ctx, so long-lived feed and
// stream handlers end as soon as shutdown begins.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webserver: listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webserver: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webserver shutdown: %w", err)
	}
	return nil
}

func (s *Server) publish(e events.Event) {
	if s.feed != nil {
		s.feed.Broadcast(e)
	}
}

func (s *Server) recordEvent(jobID string, typ db.JobEventType, snap training.Snapshot) {
	detail, _ := json.Marshal(map[string]any{
		"status":   snap.Status,
		"progress": snap.Progress,
		"loss":     snap.Loss,
	})
	if err := s.store.InsertJobEvent(jobID, typ, string(detail)); err != nil {
		s.logger.Warn("webserver: record job event failed", "job", jobID, "event", typ, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "trainwatch training API"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	job := &db.Job{
		Snapshot:  training.Queued(s.newID()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveJob(job); err != nil {
		s.logger.Error("webserver: save job failed", "err", err)
		http.Error(w, "could not create job", http.StatusInternalServerError)
		return
	}
	s.recordEvent(job.JobID, db.EventCreated, job.Snapshot)
	s.publish(events.FromSnapshot(events.TypeJobCreated, job.Snapshot))
	s.logger.Info("webserver: job created", "job", job.JobID)
	writeJSON(w, http.StatusOK, job.Snapshot)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	jobs, err := s.store.LoadJobs(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]training.Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.PathValue("id"))
	if errors.Is(err, db.ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot)
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetJob(id); errors.Is(err, db.ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	evts, err := s.store.GetJobEvents(id, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if evts == nil {
		evts = []db.JobEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
