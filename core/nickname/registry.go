package nickname

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"endorsegraph/core/audit"
	"endorsegraph/core/notify"
	"endorsegraph/core/replay"
	"endorsegraph/core/storage"
	"endorsegraph/core/typedhash"
	"endorsegraph/core/wallet"
	"endorsegraph/types/ids"
)

var (
	// ErrNotWalletOwner means the direct-path caller is not the claimed account.
	ErrNotWalletOwner = errors.New("caller is not the wallet owner")
	// ErrInvalidSignature means the recovered signer does not match the account.
	ErrInvalidSignature = errors.New("signature does not match account")
	// ErrTimestampNotGreater means the claim's timestamp is behind the
	// account's last used one.
	ErrTimestampNotGreater = errors.New("timestamp must be greater than last used")
	// ErrNicknameTaken means the requested string is currently held.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrIndexOutOfRange means a pagination request referenced missing indices.
	ErrIndexOutOfRange = errors.New("nickname index out of range")
)

// Registry maps accounts to nicknames. Every accepted claim is retained in
// an append-only log; a derived index tracks each account's current nickname
// and which strings are taken.
//
// The replay guard here is deliberately non-strict: a claim at a timestamp
// equal to the account's last used one passes the guard and is stopped, if
// at all, only by the uniqueness check. Do not tighten this.
type Registry struct {
	mu sync.Mutex

	hasher *typedhash.Hasher
	guard  *replay.Guard
	bus    *notify.Bus
	trail  *audit.Trail
	store  *storage.Store // nil for in-memory registries

	log       []typedhash.NicknameClaim
	byAccount map[ids.Address]string
	taken     map[string]ids.Address

	now func() uint64 // claim timestamp source for the direct path
}

// Config wires a Registry. Store and Trail may be nil.
type Config struct {
	Hasher *typedhash.Hasher
	Bus    *notify.Bus
	Trail  *audit.Trail
	Store  *storage.Store
}

// New builds a Registry, reloading the claim log and derived indices from
// the store.
func New(cfg Config) (*Registry, error) {
	r := &Registry{
		hasher:    cfg.Hasher,
		guard:     replay.NewNonStrict(),
		bus:       cfg.Bus,
		trail:     cfg.Trail,
		store:     cfg.Store,
		byAccount: make(map[ids.Address]string),
		taken:     make(map[string]ids.Address),
		now:       func() uint64 { return uint64(time.Now().Unix()) },
	}
	if r.store != nil {
		if err := r.reload(); err != nil {
			return nil, fmt.Errorf("reload nickname log: %w", err)
		}
	}
	return r, nil
}

func (r *Registry) reload() error {
	n, err := r.store.Length(storage.NicknameLog)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	raw, err := r.store.Range(storage.NicknameLog, 0, n-1)
	if err != nil {
		return err
	}
	for _, b := range raw {
		var c typedhash.NicknameClaim
		if err := json.Unmarshal(b, &c); err != nil {
			return err
		}
		r.log = append(r.log, c)
		r.applyIndex(c)
		r.guard.Commit(c.Account, c.Timestamp)
	}
	return nil
}

// SetNickname claims a nickname on the direct path: the caller must be the
// account itself, and the claim is timestamped with the current clock. No
// replay check is needed here; caller identity plus a monotonic clock cover
// it, but the shared claim logic still records the timestamp.
func (r *Registry) SetNickname(caller, account ids.Address, nick string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != account {
		return r.reject(caller, ErrNotWalletOwner)
	}
	return r.setNickname(typedhash.NicknameClaim{
		Account:   account,
		Nickname:  nick,
		Timestamp: r.now(),
	})
}

// SetNicknameSigned claims a nickname on the relayed path: anyone may submit
// a claim signed by the account. Checks run in fixed order: replay guard
// first, then signature binding, then the shared claim logic.
func (r *Registry) SetNicknameSigned(c typedhash.NicknameClaim, sig []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.guard.Check(c.Account, c.Timestamp); err != nil {
		return r.reject(c.Account, ErrTimestampNotGreater)
	}
	digest := r.hasher.NicknameDigest(c)
	signer, err := wallet.RecoverSigner(digest, sig)
	if err != nil {
		return r.reject(c.Account, err)
	}
	if signer != c.Account || signer.IsZero() {
		return r.reject(c.Account, ErrInvalidSignature)
	}
	return r.setNickname(c)
}

// setNickname is the shared claim logic. Caller holds the mutex.
func (r *Registry) setNickname(c typedhash.NicknameClaim) error {
	// A taken string is rejected even when the requester holds it; claims
	// are never no-ops.
	if _, held := r.taken[c.Nickname]; held {
		return r.reject(c.Account, ErrNicknameTaken)
	}
	if r.store != nil {
		b, err := json.Marshal(c)
		if err != nil {
			return r.reject(c.Account, err)
		}
		if err := r.store.Append(storage.NicknameLog, [][]byte{b}, nil); err != nil {
			return r.reject(c.Account, err)
		}
	}

	r.applyIndex(c)
	r.guard.Commit(c.Account, c.Timestamp)
	r.log = append(r.log, c)
	r.bus.Emit(notify.NicknameChanged{Account: c.Account, Nickname: c.Nickname})
	if r.trail != nil {
		r.trail.Record(c.Account.String(), "set_nickname", "accepted", c.Nickname)
	}
	return nil
}

// applyIndex moves the derived indices to reflect an accepted claim: the
// account's previous string is freed and the new one marked taken.
func (r *Registry) applyIndex(c typedhash.NicknameClaim) {
	if old := r.byAccount[c.Account]; old != "" {
		delete(r.taken, old)
	}
	r.byAccount[c.Account] = c.Nickname
	r.taken[c.Nickname] = c.Account
}

// Nickname returns the account's current nickname, empty if none.
func (r *Registry) Nickname(account ids.Address) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byAccount[account]
}

// ClaimsLength returns the total number of claims ever appended.
func (r *Registry) ClaimsLength() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.log))
}

// Claims returns claims fromIndex..toIndex inclusive, in log order. Both
// bounds must reference existing indices.
func (r *Registry) Claims(fromIndex, toIndex uint64) ([]typedhash.NicknameClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fromIndex > toIndex || toIndex >= uint64(len(r.log)) {
		return nil, fmt.Errorf("%w: [%d,%d] with length %d",
			ErrIndexOutOfRange, fromIndex, toIndex, len(r.log))
	}
	out := make([]typedhash.NicknameClaim, toIndex-fromIndex+1)
	copy(out, r.log[fromIndex:toIndex+1])
	return out, nil
}

// SetClock overrides the direct-path timestamp source. Tests only.
func (r *Registry) SetClock(now func() uint64) {
	r.now = now
}

func (r *Registry) reject(actor ids.Address, err error) error {
	if r.trail != nil {
		r.trail.Record(actor.String(), "set_nickname", "rejected", err.Error())
	}
	return err
}
