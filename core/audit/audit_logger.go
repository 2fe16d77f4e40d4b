package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry records the outcome of one submission attempt. Entries chain through
// PrevHash so any tampering with history is detectable via Verify.
type Entry struct {
	EventID   string    `json:"eventID"`
	Actor     string    `json:"actor"`  // submitting identity, hex
	Action    string    `json:"action"` // "endorse", "set_nickname", ...
	Status    string    `json:"status"` // "accepted" or "rejected"
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	PrevHash  string    `json:"prevHash"`
	EntryHash string    `json:"entryHash"`
}

// Trail is an in-memory hash-chained audit log of submission outcomes.
type Trail struct {
	mu      sync.Mutex
	entries []Entry
}

func NewTrail() *Trail {
	return &Trail{}
}

// Record appends an entry for a submission outcome and returns it.
func (t *Trail) Record(actor, action, status, reason string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevHash := ""
	if len(t.entries) > 0 {
		prevHash = t.entries[len(t.entries)-1].EntryHash
	}
	e := Entry{
		EventID:   uuid.NewString(),
		Actor:     actor,
		Action:    action,
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		PrevHash:  prevHash,
	}
	e.EntryHash = hashEntry(e)
	t.entries = append(t.entries, e)
	return e
}

// Entries returns a copy of the trail.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Verify recomputes the hash chain and reports the first broken link.
func (t *Trail) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := ""
	for i, e := range t.entries {
		if e.PrevHash != prev {
			return fmt.Errorf("audit entry %d: prev hash mismatch", i)
		}
		if hashEntry(e) != e.EntryHash {
			return fmt.Errorf("audit entry %d: entry hash mismatch", i)
		}
		prev = e.EntryHash
	}
	return nil
}

// hashEntry hashes every field except EntryHash itself.
func hashEntry(e Entry) string {
	h := sha256.New()
	h.Write([]byte(e.EventID))
	h.Write([]byte(e.Actor))
	h.Write([]byte(e.Action))
	h.Write([]byte(e.Status))
	h.Write([]byte(e.Reason))
	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.PrevHash))
	return hex.EncodeToString(h.Sum(nil))
}
