package server

import (
	"log"
	"net/http"
	"os"
	"strings"

	"endorsegraph/core/audit"
	"endorsegraph/core/auth"
	"endorsegraph/core/ledger"
	"endorsegraph/core/nickname"
	"endorsegraph/core/topics"
	"endorsegraph/types/ids"

	_ "github.com/joho/godotenv/autoload"
)

// Server exposes the ledger, nickname registry and topic registry over HTTP.
// All submission endpoints authenticate the caller with a capability token;
// read endpoints are open.
type Server struct {
	ListenAddr string

	ledger   *ledger.Ledger
	registry *nickname.Registry
	topics   *topics.Registry
	trail    *audit.Trail
	verifier *auth.TokenVerifier
}

func NewServer(listenAddr string, l *ledger.Ledger, r *nickname.Registry, t *topics.Registry, trail *audit.Trail) *Server {
	return &Server{
		ListenAddr: listenAddr,
		ledger:     l,
		registry:   r,
		topics:     t,
		trail:      trail,
		verifier:   &auth.TokenVerifier{Secret: []byte(os.Getenv("JWT_SECRET"))},
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Submission endpoints
	mux.HandleFunc("/api/endorse", s.handleEndorse)
	mux.HandleFunc("/api/nickname", s.handleSetNickname)
	mux.HandleFunc("/api/nickname_signed", s.handleSetNicknameSigned)
	mux.HandleFunc("/api/metadata", s.handleMetadata)

	// Paginated log reads
	mux.HandleFunc("/api/scores", s.handleScores)
	mux.HandleFunc("/api/scores/length", s.handleScoresLength)
	mux.HandleFunc("/api/nicknames", s.handleNicknames)
	mux.HandleFunc("/api/nicknames/length", s.handleNicknamesLength)
	mux.HandleFunc("/api/nickname/lookup", s.handleNicknameLookup)

	// Topics
	mux.HandleFunc("/api/topics", s.handleTopics)
	mux.HandleFunc("/api/topics/finalize", s.handleTopicFinalize)
	mux.HandleFunc("/api/topics/transfer", s.handleTopicTransfer)

	// Audit
	mux.HandleFunc("/api/audit", s.handleAudit)

	// Ops surface
	mux.HandleFunc("/health/liveness", s.HandleLiveness)
	mux.HandleFunc("/health/readiness", s.HandleReadiness)
	mux.HandleFunc("/nodehealth", s.HandleNodeHealth)
	mux.HandleFunc("/status", s.HandleStatus)
	mux.HandleFunc("/version", s.HandleVersion)

	return mux
}

func (s *Server) Start() error {
	log.Printf("[INFO] API server listening on %s", s.ListenAddr)
	return http.ListenAndServe(s.ListenAddr, s.Routes())
}

// callerFromToken authenticates the request's Bearer token and returns the
// caller identity from its subject, plus the token's own capability view.
func (s *Server) callerFromToken(r *http.Request) (ids.Address, *auth.CapabilityClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ids.ZeroAddress, nil, errNoToken
	}
	claims, err := s.verifier.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return ids.ZeroAddress, nil, err
	}
	caller, err := ids.AddressFromString(claims.Subject)
	if err != nil {
		return ids.ZeroAddress, nil, err
	}
	return caller, claims, nil
}
