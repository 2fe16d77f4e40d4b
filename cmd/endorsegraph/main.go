package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"endorsegraph/api/server"
	"endorsegraph/core/audit"
	"endorsegraph/core/auth"
	"endorsegraph/core/ledger"
	"endorsegraph/core/nickname"
	"endorsegraph/core/notify"
	"endorsegraph/core/storage"
	"endorsegraph/core/topics"
	"endorsegraph/core/typedhash"
	"endorsegraph/types/ids"
)

func main() {
	godotenv.Load()

	graphID, err := ids.AddressFromString(envOr("GRAPH_ID", ""))
	if err != nil {
		log.Fatalf("[FATAL] GRAPH_ID: %v", err)
	}
	chainID := parseUintEnv("CHAIN_ID", 1)

	hasher := typedhash.NewHasher(typedhash.Domain{
		Name:        envOr("DOMAIN_NAME", "EndorseGraph"),
		Version:     envOr("DOMAIN_VERSION", "1"),
		ChainID:     chainID,
		VerifyingID: graphID,
	})

	store, err := storage.NewStore(envOr("DB_PATH", "./endorsegraph-db"))
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer store.Close()

	roles := &auth.StaticRoles{
		Endorsers: addressSetEnv("ENDORSERS"),
		Admins:    addressSetEnv("ADMINS"),
	}
	bus := notify.NewLoggingBus()
	trail := audit.NewTrail()

	ldgr, err := ledger.New(ledger.Config{
		GraphID:   graphID,
		Hasher:    hasher,
		Authorize: roles.Allowed,
		Bus:       bus,
		Trail:     trail,
		Store:     store,
	})
	if err != nil {
		log.Fatalf("[FATAL] ledger: %v", err)
	}
	log.Printf("[INFO] ledger loaded: %d scores, graph %s", ldgr.ScoresLength(), graphID)

	registry, err := nickname.New(nickname.Config{
		Hasher: hasher,
		Bus:    bus,
		Trail:  trail,
		Store:  store,
	})
	if err != nil {
		log.Fatalf("[FATAL] nickname registry: %v", err)
	}
	log.Printf("[INFO] nickname registry loaded: %d claims", registry.ClaimsLength())

	topicReg, err := topics.New(bus, store)
	if err != nil {
		log.Fatalf("[FATAL] topic registry: %v", err)
	}
	if seed := os.Getenv("TOPICS_SEED"); seed != "" {
		if err := topicReg.LoadSeed(seed); err != nil {
			log.Fatalf("[FATAL] topic seed: %v", err)
		}
	}

	listenAddr := ":" + envOr("SERVER_PORT", "8080")
	srv := server.NewServer(listenAddr, ldgr, registry, topicReg, trail)
	if err := srv.Start(); err != nil {
		log.Fatalf("[FATAL] server: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseUintEnv(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Fatalf("[FATAL] %s must be an unsigned integer", key)
	}
	return out
}

// addressSetEnv parses a comma-separated address list env var.
func addressSetEnv(key string) map[ids.Address]bool {
	out := make(map[ids.Address]bool)
	v := os.Getenv(key)
	if v == "" {
		return out
	}
	for _, part := range strings.Split(v, ",") {
		addr, err := ids.AddressFromString(strings.TrimSpace(part))
		if err != nil {
			log.Fatalf("[FATAL] %s: bad address %q: %v", key, part, err)
		}
		out[addr] = true
	}
	return out
}
