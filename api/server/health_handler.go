// health_handler.go - HTTP handlers for liveness, readiness and node health
package server

import (
	"encoding/json"
	"net/http"
)

type LivenessResponse struct {
	Alive bool `json:"alive"`
}

type ReadinessResponse struct {
	Ready bool `json:"ready"`
}

// HandleLiveness responds to /health/liveness
func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{Alive: true}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleReadiness responds to /health/readiness
func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{Ready: s.NodeReadiness()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// NodeReadiness reports whether the core components finished loading. Both
// reload their state from the store before the server starts, so wiring is
// the readiness signal.
func (s *Server) NodeReadiness() bool {
	return s.ledger != nil && s.registry != nil
}

// NodeHealthResponse is the response type for the /nodehealth endpoint
type NodeHealthResponse struct {
	Status  string      `json:"status"`
	Metrics NodeMetrics `json:"metrics"`
}

// HandleNodeHealth responds to /nodehealth (summary health)
func (s *Server) HandleNodeHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()

	status := "healthy"
	if !s.NodeReadiness() {
		status = "initializing"
	}

	resp := NodeHealthResponse{
		Status:  status,
		Metrics: metrics,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
