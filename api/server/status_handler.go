// status_handler.go - /status and /version endpoints
package server

import (
	"encoding/json"
	"net/http"
)

// StatusResponse summarizes the node for dashboards and CLIs.
type StatusResponse struct {
	NodeVersion   string `json:"node_version"`
	APIVersion    string `json:"api_version"`
	GraphID       string `json:"graph_id"`
	ScoreCount    uint64 `json:"score_count"`
	NicknameCount uint64 `json:"nickname_count"`
	TopicCount    uint64 `json:"topic_count"`
	MetadataURI   string `json:"metadata_uri"`
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		NodeVersion:   NodeVersion(),
		APIVersion:    APIVersion(),
		GraphID:       s.ledger.GraphID().String(),
		ScoreCount:    s.ledger.ScoresLength(),
		NicknameCount: s.registry.ClaimsLength(),
		TopicCount:    s.topics.Count(),
		MetadataURI:   s.ledger.MetadataURI(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"node_version": NodeVersion(),
		"api_version":  APIVersion(),
	})
}

// NodeVersion returns the current node software version.
func NodeVersion() string {
	return "v0.1.0-dev"
}

// APIVersion returns the current API version.
func APIVersion() string {
	return "v1"
}
