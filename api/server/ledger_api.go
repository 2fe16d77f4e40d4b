package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"endorsegraph/core/ledger"
	"endorsegraph/core/nickname"
	"endorsegraph/core/typedhash"
	"endorsegraph/core/validation"
	"endorsegraph/core/wallet"
)

var errNoToken = errors.New("missing bearer token")

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// EndorseRequest is the wire shape of POST /api/endorse.
type EndorseRequest struct {
	Endorsement typedhash.Endorsement `json:"endorsement"`
	Signature   string                `json:"signature"` // hex r||s||v
}

// NicknameSignedRequest is the wire shape of POST /api/nickname_signed.
type NicknameSignedRequest struct {
	Claim     typedhash.NicknameClaim `json:"claim"`
	Signature string                  `json:"signature"`
}

// NicknameRequest is the wire shape of POST /api/nickname (direct path).
type NicknameRequest struct {
	Nickname string `json:"nickname"`
}

func (s *Server) handleEndorse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST only"))
		return
	}
	caller, _, err := s.callerFromToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validation.ValidateEndorsementPayload(body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req EndorseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Endorse(caller, req.Endorsement, sig); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "accepted"})
}

func (s *Server) handleSetNickname(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST only"))
		return
	}
	// The direct path takes the caller identity from the token subject; the
	// registry enforces caller == account.
	caller, _, err := s.callerFromToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req NicknameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.SetNickname(caller, caller, req.Nickname); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "accepted"})
}

func (s *Server) handleSetNicknameSigned(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST only"))
		return
	}
	// Anyone may relay a signed claim; no token needed.
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validation.ValidateNicknamePayload(body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req NicknameSignedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.SetNicknameSigned(req.Claim, sig); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "accepted"})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"metadataURI": s.ledger.MetadataURI()})
	case http.MethodPost:
		caller, _, err := s.callerFromToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		var req struct {
			URI string `json:"uri"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.ledger.SetMetadataURI(caller, req.URI); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, acceptedResponse{Status: "accepted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET or POST only"))
	}
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET only"))
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.ledger.Scores(from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleScoresLength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET only"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"length": s.ledger.ScoresLength()})
}

func (s *Server) handleNicknames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET only"))
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	claims, err := s.registry.Claims(from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (s *Server) handleNicknamesLength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET only"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"length": s.registry.ClaimsLength()})
}

func (s *Server) handleNicknameLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET only"))
		return
	}
	account, err := addressParam(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nickname": s.registry.Nickname(account)})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET only"))
		return
	}
	if s.trail == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.trail.Entries())
}

// statusFor maps core rejection errors onto HTTP status codes. Every core
// failure is terminal for its submission; nothing here retries.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrInvalidSignatureFormat):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrRecoveryFailed),
		errors.Is(err, ledger.ErrNotSigner),
		errors.Is(err, nickname.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotEndorser),
		errors.Is(err, ledger.ErrNotAdmin),
		errors.Is(err, nickname.ErrNotWalletOwner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidGraphID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidTimestamp),
		errors.Is(err, nickname.ErrTimestampNotGreater),
		errors.Is(err, nickname.ErrNicknameTaken):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrIndexOutOfRange),
		errors.Is(err, nickname.ErrIndexOutOfRange):
		return http.StatusRequestedRangeNotSatisfiable
	}
	return http.StatusInternalServerError
}

func decodeSignature(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func rangeParams(r *http.Request) (uint64, uint64, error) {
	from, err := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid 'from' parameter")
	}
	to, err := strconv.ParseUint(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid 'to' parameter")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Printf("[WARN] request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
