// Package httpserver exposes a job-submission HTTP API and a live
// progress websocket in front of a jobmanager.Manager, adapted from the
// teacher's GitVista server: the same rate-limited, request-logged,
// deadline-bounded handler chain, fronting scan jobs instead of cloned
// repositories.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rybkr/sumtree/internal/jobmanager"
	"github.com/rybkr/sumtree/internal/live"
)

// Server serves the scan-job API and the live progress feed.
type Server struct {
	addr        string
	jobs        *jobmanager.Manager
	hub         *live.Hub
	rateLimiter *rateLimiter
	httpServer  *http.Server
	logger      *slog.Logger
}

// New constructs a Server in front of jobs and hub. logger defaults to
// slog.Default() when nil.
func New(addr string, jobs *jobmanager.Manager, hub *live.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:        addr,
		jobs:        jobs,
		hub:         hub,
		rateLimiter: newRateLimiter(20, 40, time.Second),
		logger:      logger,
	}
}

// Start builds the route table and blocks serving HTTP until the server
// is shut down, returning nil on a graceful Shutdown.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	const apiWriteDeadline = 30 * time.Second

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/jobs", writeDeadline(apiWriteDeadline, s.rateLimiter.middleware(s.handleSubmit)))
	mux.HandleFunc("GET /api/jobs", writeDeadline(apiWriteDeadline, s.handleList))
	mux.HandleFunc("GET /api/jobs/{id}", writeDeadline(apiWriteDeadline, s.handleStatus))
	mux.HandleFunc("GET /api/jobs/{id}/sumfile", s.handleDownload)
	mux.HandleFunc("DELETE /api/jobs/{id}", writeDeadline(apiWriteDeadline, s.handleRemove))
	mux.Handle("GET /api/live", s.hub)

	handler := corsMiddleware(requestLogger(s.logger, mux))

	// WriteTimeout must remain 0 because the live-progress websocket is
	// long-lived; non-websocket handlers enforce their own per-response
	// deadline via writeDeadline above.
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("sumtree server starting", "addr", "http://"+s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener and the rate limiter's
// cleanup goroutine.
func (s *Server) Shutdown() {
	s.logger.Info("sumtree server shutting down")
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}
	s.rateLimiter.Close()
}

type submitRequest struct {
	Root string `json:"root"`
}

type submitResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.jobs.Submit(req.Root)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitResponse{ID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.jobs.List())
}

type statusResponse struct {
	State    string                  `json:"state"`
	Error    string                  `json:"error,omitempty"`
	Progress jobmanager.ScanProgress `json:"progress"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, errMsg, progress, err := s.jobs.Status(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{State: state.String(), Error: errMsg, Progress: progress})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path, err := s.jobs.SumFilePath(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("opening sum file: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("error streaming sum file", "id", id, "error", err)
	}
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.Remove(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
