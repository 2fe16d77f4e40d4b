package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"endorsegraph/core/topics"
	"endorsegraph/types/ids"
)

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if idStr := r.URL.Query().Get("id"); idStr != "" {
			id, err := strconv.ParseUint(idStr, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid 'id' parameter"))
				return
			}
			t, err := s.topics.Get(id)
			if err != nil {
				writeError(w, topicStatusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, t)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"count": s.topics.Count()})
	case http.MethodPost:
		caller, _, err := s.callerFromToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		var req struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id, err := s.topics.Create(caller, req.Name, req.URI)
		if err != nil {
			writeError(w, topicStatusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET or POST only"))
	}
}

func (s *Server) handleTopicFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST only"))
		return
	}
	caller, _, err := s.callerFromToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req struct {
		ID uint64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.topics.Finalize(caller, req.ID); err != nil {
		writeError(w, topicStatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "finalized"})
}

func (s *Server) handleTopicTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST only"))
		return
	}
	caller, _, err := s.callerFromToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req struct {
		ID uint64      `json:"id"`
		To ids.Address `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.topics.Transfer(caller, req.ID, req.To); err != nil {
		writeError(w, topicStatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "transferred"})
}

func topicStatusFor(err error) int {
	switch {
	case errors.Is(err, topics.ErrTopicNotFound):
		return http.StatusNotFound
	case errors.Is(err, topics.ErrNotTopicOwner):
		return http.StatusForbidden
	case errors.Is(err, topics.ErrAlreadyFinalized), errors.Is(err, topics.ErrNotFinalized):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func addressParam(r *http.Request, name string) (ids.Address, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return ids.ZeroAddress, errors.New("missing '" + name + "' parameter")
	}
	return ids.AddressFromString(v)
}
