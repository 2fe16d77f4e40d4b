// signendorse emits a signed endorsement submission as JSON, ready to POST
// to /api/endorse. The signing key comes from ENDORSEGRAPH_SIGNER_PRIVKEY.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"endorsegraph/core/typedhash"
	"endorsegraph/core/wallet"
	"endorsegraph/types/ids"
)

func main() {
	godotenv.Load()

	var (
		to        = flag.String("to", "", "endorsed identity (hex address)")
		graph     = flag.String("graph", os.Getenv("GRAPH_ID"), "graph id (hex address)")
		timestamp = flag.Uint64("timestamp", 0, "submission timestamp (unix seconds)")
		name      = flag.String("domain-name", envOr("DOMAIN_NAME", "EndorseGraph"), "signing domain name")
		version   = flag.String("domain-version", envOr("DOMAIN_VERSION", "1"), "signing domain version")
		chainID   = flag.Uint64("chain-id", 1, "signing domain chain id")
		scoresArg = flag.String("scores", "", `scores JSON, e.g. [{"topicId":1,"score":10,"confidence":5}]`)
	)
	flag.Parse()

	loader := wallet.EnvWalletLoader{}
	w, err := loader.LoadWallet()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	toAddr, err := ids.AddressFromString(*to)
	if err != nil {
		log.Fatalf("[FATAL] -to: %v", err)
	}
	graphAddr, err := ids.AddressFromString(*graph)
	if err != nil {
		log.Fatalf("[FATAL] -graph: %v", err)
	}
	var scores []typedhash.Score
	if *scoresArg != "" {
		if err := json.Unmarshal([]byte(*scoresArg), &scores); err != nil {
			log.Fatalf("[FATAL] -scores: %v", err)
		}
	}

	e := typedhash.Endorsement{
		Timestamp: *timestamp,
		From:      w.Address(),
		To:        toAddr,
		GraphID:   graphAddr,
		Scores:    scores,
	}
	hasher := typedhash.NewHasher(typedhash.Domain{
		Name:        *name,
		Version:     *version,
		ChainID:     *chainID,
		VerifyingID: graphAddr,
	})
	sig := w.SignDigest(hasher.EndorsementDigest(e))

	out, err := json.MarshalIndent(map[string]interface{}{
		"endorsement": e,
		"signature":   hex.EncodeToString(sig),
	}, "", "  ")
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	fmt.Println(string(out))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
