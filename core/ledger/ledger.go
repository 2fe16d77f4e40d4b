package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"endorsegraph/core/audit"
	"endorsegraph/core/auth"
	"endorsegraph/core/notify"
	"endorsegraph/core/replay"
	"endorsegraph/core/storage"
	"endorsegraph/core/typedhash"
	"endorsegraph/core/wallet"
	"endorsegraph/types/ids"
)

// replayKeyPrefix namespaces persisted per-identity replay floors in the
// store's metadata table. The suffix is the identity's hex address.
const replayKeyPrefix = "replay:score:"

var (
	// ErrNotEndorser means the caller lacks the endorser capability.
	ErrNotEndorser = errors.New("caller is not an endorser")
	// ErrNotAdmin means the caller lacks the admin capability.
	ErrNotAdmin = errors.New("caller is not an admin")
	// ErrInvalidGraphID means the submission targets a different ledger instance.
	ErrInvalidGraphID = errors.New("invalid graph id")
	// ErrNotSigner means the recovered signer does not match the from identity.
	ErrNotSigner = errors.New("signature does not match from identity")
	// ErrInvalidTimestamp means the from identity's timestamp did not advance.
	ErrInvalidTimestamp = errors.New("timestamp must be greater than last submitted")
	// ErrIndexOutOfRange means a pagination request referenced missing indices.
	ErrIndexOutOfRange = errors.New("score index out of range")
)

// ScoreRecord is one stored endorsement score. Records are immutable once
// appended and their indices never change.
type ScoreRecord struct {
	Timestamp  uint64      `json:"timestamp"`
	From       ids.Address `json:"from"`
	To         ids.Address `json:"to"`
	TopicID    uint64      `json:"topicId"`
	Score      int8        `json:"score"`
	Confidence uint8       `json:"confidence"`
}

// Ledger validates endorsement submissions and appends their scores to an
// append-only log. A single Ledger instance serves exactly one graph
// identity; submissions carrying any other graph id are rejected.
//
// Submissions are serialized by the internal mutex: each one fully applies
// (log append, event emission, replay-guard update) or leaves no trace.
type Ledger struct {
	mu sync.Mutex

	graphID   ids.Address
	hasher    *typedhash.Hasher
	guard     *replay.Guard
	authorize auth.Predicate
	bus       *notify.Bus
	trail     *audit.Trail
	store     *storage.Store // nil for in-memory ledgers

	scores      []ScoreRecord
	metadataURI string
}

// Config wires a Ledger. Store and Trail may be nil; Authorize and Bus must
// not be.
type Config struct {
	GraphID   ids.Address
	Hasher    *typedhash.Hasher
	Authorize auth.Predicate
	Bus       *notify.Bus
	Trail     *audit.Trail
	Store     *storage.Store
}

// New builds a Ledger, reloading any persisted scores and replay state from
// the store.
func New(cfg Config) (*Ledger, error) {
	l := &Ledger{
		graphID:   cfg.GraphID,
		hasher:    cfg.Hasher,
		guard:     replay.NewStrict(),
		authorize: cfg.Authorize,
		bus:       cfg.Bus,
		trail:     cfg.Trail,
		store:     cfg.Store,
	}
	if l.store != nil {
		if err := l.reload(); err != nil {
			return nil, fmt.Errorf("reload score log: %w", err)
		}
	}
	return l, nil
}

func (l *Ledger) reload() error {
	n, err := l.store.Length(storage.ScoreLog)
	if err != nil {
		return err
	}
	if n > 0 {
		raw, err := l.store.Range(storage.ScoreLog, 0, n-1)
		if err != nil {
			return err
		}
		l.scores = make([]ScoreRecord, 0, n)
		for _, b := range raw {
			var rec ScoreRecord
			if err := json.Unmarshal(b, &rec); err != nil {
				return err
			}
			l.scores = append(l.scores, rec)
		}
	}
	// Replay floors are persisted separately so that accepted submissions
	// with empty score sequences still hold their timestamp after a restart.
	floors, err := l.store.MetaByPrefix(replayKeyPrefix)
	if err != nil {
		return err
	}
	for addrStr, v := range floors {
		addr, err := ids.AddressFromString(addrStr)
		if err != nil {
			return err
		}
		l.guard.Commit(addr, storage.DecodeUint64(v))
	}
	uri, err := l.store.GetMeta("metadataURI")
	if err != nil {
		return err
	}
	l.metadataURI = string(uri)
	return nil
}

// Endorse validates a signed endorsement and appends one ScoreRecord per
// score element, in submitted order. The replay guard advances exactly once
// per accepted submission, even when the scores sequence is empty.
func (l *Ledger) Endorse(caller ids.Address, e typedhash.Endorsement, sig []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.authorize(caller, auth.ActionEndorse) {
		return l.reject(caller, "endorse", ErrNotEndorser)
	}
	if e.GraphID != l.graphID {
		return l.reject(e.From, "endorse", ErrInvalidGraphID)
	}
	digest := l.hasher.EndorsementDigest(e)
	signer, err := wallet.RecoverSigner(digest, sig)
	if err != nil {
		return l.reject(e.From, "endorse", err)
	}
	if signer != e.From || signer.IsZero() {
		return l.reject(e.From, "endorse", ErrNotSigner)
	}
	if err := l.guard.Check(e.From, e.Timestamp); err != nil {
		return l.reject(e.From, "endorse", ErrInvalidTimestamp)
	}

	records := make([]ScoreRecord, 0, len(e.Scores))
	payloads := make([][]byte, 0, len(e.Scores))
	for _, s := range e.Scores {
		rec := ScoreRecord{
			Timestamp:  e.Timestamp,
			From:       e.From,
			To:         e.To,
			TopicID:    s.TopicID,
			Score:      s.Score,
			Confidence: s.Confidence,
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return l.reject(e.From, "endorse", err)
		}
		records = append(records, rec)
		payloads = append(payloads, b)
	}
	// Persist before touching in-memory state so a storage failure leaves
	// the submission fully rejected. The replay floor rides in the same
	// batch: even an empty score sequence must hold its timestamp across
	// restarts.
	if l.store != nil {
		floor := map[string][]byte{
			replayKeyPrefix + e.From.String(): storage.EncodeUint64(e.Timestamp),
		}
		if err := l.store.Append(storage.ScoreLog, payloads, floor); err != nil {
			return l.reject(e.From, "endorse", err)
		}
	}

	l.scores = append(l.scores, records...)
	for _, rec := range records {
		l.bus.Emit(notify.Scored{
			Timestamp:  rec.Timestamp,
			From:       rec.From,
			To:         rec.To,
			TopicID:    rec.TopicID,
			Score:      rec.Score,
			Confidence: rec.Confidence,
		})
	}
	l.guard.Commit(e.From, e.Timestamp)
	if l.trail != nil {
		l.trail.Record(e.From.String(), "endorse", "accepted",
			fmt.Sprintf("%d scores appended", len(records)))
	}
	return nil
}

// ScoresLength returns the total number of records ever appended.
func (l *Ledger) ScoresLength() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.scores))
}

// Scores returns records fromIndex..toIndex inclusive, in log order. Both
// bounds must reference existing indices; nothing is truncated.
func (l *Ledger) Scores(fromIndex, toIndex uint64) ([]ScoreRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fromIndex > toIndex || toIndex >= uint64(len(l.scores)) {
		return nil, fmt.Errorf("%w: [%d,%d] with length %d",
			ErrIndexOutOfRange, fromIndex, toIndex, len(l.scores))
	}
	out := make([]ScoreRecord, toIndex-fromIndex+1)
	copy(out, l.scores[fromIndex:toIndex+1])
	return out, nil
}

// GraphID returns the ledger's fixed graph identity.
func (l *Ledger) GraphID() ids.Address {
	return l.graphID
}

// MetadataURI returns the current metadata URI.
func (l *Ledger) MetadataURI() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metadataURI
}

// SetMetadataURI updates the metadata URI. Admin capability required.
func (l *Ledger) SetMetadataURI(caller ids.Address, uri string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.authorize(caller, auth.ActionSetMetadata) {
		return l.reject(caller, "set_metadata", ErrNotAdmin)
	}
	if l.store != nil {
		if err := l.store.PutMeta("metadataURI", []byte(uri)); err != nil {
			return l.reject(caller, "set_metadata", err)
		}
	}
	old := l.metadataURI
	l.metadataURI = uri
	l.bus.Emit(notify.MetadataUpdated{NewValue: uri, OldValue: old})
	if l.trail != nil {
		l.trail.Record(caller.String(), "set_metadata", "accepted", uri)
	}
	return nil
}

func (l *Ledger) reject(actor ids.Address, action string, err error) error {
	if l.trail != nil {
		l.trail.Record(actor.String(), action, "rejected", err.Error())
	}
	return err
}
