package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/rybkr/sumtree/internal/jobmanager"
)

// HealthStatus represents the server health check response.
type HealthStatus struct {
	Status     string `json:"status"`
	ActiveJobs int    `json:"active_jobs"`
	ReadyJobs  int    `json:"ready_jobs"`
}

// handleHealth returns a health check response for load balancers and monitoring.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok"}
	for _, j := range s.jobs.List() {
		switch j.State {
		case jobmanager.StateRunning, jobmanager.StatePending:
			status.ActiveJobs++
		case jobmanager.StateReady:
			status.ReadyJobs++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
