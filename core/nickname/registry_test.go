package nickname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"endorsegraph/core/audit"
	"endorsegraph/core/notify"
	"endorsegraph/core/storage"
	"endorsegraph/core/typedhash"
	"endorsegraph/core/wallet"
	"endorsegraph/types/ids"
)

func testHasher() *typedhash.Hasher {
	graph, _ := ids.AddressFromString("0x1111111111111111111111111111111111111111")
	return typedhash.NewHasher(typedhash.Domain{
		Name: "EndorseGraph", Version: "1", ChainID: 1, VerifyingID: graph,
	})
}

func newTestRegistry(t *testing.T) (*Registry, *[]notify.Event) {
	t.Helper()
	var events []notify.Event
	bus := notify.NewBus()
	bus.Subscribe(func(e notify.Event) { events = append(events, e) })
	r, err := New(Config{Hasher: testHasher(), Bus: bus, Trail: audit.NewTrail()})
	require.NoError(t, err)
	return r, &events
}

func signedClaim(t *testing.T, r *Registry, w *wallet.Wallet, nick string, ts uint64) (typedhash.NicknameClaim, []byte) {
	t.Helper()
	c := typedhash.NicknameClaim{Account: w.Address(), Nickname: nick, Timestamp: ts}
	return c, w.SignDigest(r.hasher.NicknameDigest(c))
}

func TestDirectClaim(t *testing.T) {
	r, events := newTestRegistry(t)
	u1, _ := ids.AddressFromString("0x2222222222222222222222222222222222222222")
	r.SetClock(func() uint64 { return 100 })

	require.NoError(t, r.SetNickname(u1, u1, "Nick"))
	assert.Equal(t, "Nick", r.Nickname(u1))
	assert.Equal(t, uint64(1), r.ClaimsLength())

	claims, err := r.Claims(0, 0)
	require.NoError(t, err)
	assert.Equal(t, typedhash.NicknameClaim{Account: u1, Nickname: "Nick", Timestamp: 100}, claims[0])

	require.Len(t, *events, 1)
	ev := (*events)[0].(notify.NicknameChanged)
	assert.Equal(t, "Nick", ev.Nickname)
}

func TestDirectClaimRequiresOwner(t *testing.T) {
	r, _ := newTestRegistry(t)
	u1, _ := ids.AddressFromString("0x2222222222222222222222222222222222222222")
	u2, _ := ids.AddressFromString("0x3333333333333333333333333333333333333333")

	assert.ErrorIs(t, r.SetNickname(u1, u2, "Nick"), ErrNotWalletOwner)
	assert.Equal(t, "", r.Nickname(u2))
}

func TestUniquenessIndependentOfTimestamps(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.SetClock(func() uint64 { return 100 })
	u1, _ := ids.AddressFromString("0x2222222222222222222222222222222222222222")
	require.NoError(t, r.SetNickname(u1, u1, "Nick"))

	// U2 claims "Nick" via signed data with an *earlier* timestamp: still a
	// uniqueness rejection, timestamp ordering is irrelevant here.
	u2, err := wallet.NewWallet()
	require.NoError(t, err)
	c, sig := signedClaim(t, r, u2, "Nick", 50)
	assert.ErrorIs(t, r.SetNicknameSigned(c, sig), ErrNicknameTaken)
	assert.Equal(t, "", r.Nickname(u2.Address()))
}

func TestReassignFreesOldNickname(t *testing.T) {
	r, _ := newTestRegistry(t)
	ts := uint64(100)
	r.SetClock(func() uint64 { ts++; return ts })
	u1, _ := ids.AddressFromString("0x2222222222222222222222222222222222222222")
	u2, _ := ids.AddressFromString("0x3333333333333333333333333333333333333333")

	require.NoError(t, r.SetNickname(u1, u1, "Nick"))
	require.NoError(t, r.SetNickname(u1, u1, "Nick2"))
	assert.Equal(t, "Nick2", r.Nickname(u1))

	// "Nick" is free again.
	require.NoError(t, r.SetNickname(u2, u2, "Nick"))
	assert.Equal(t, "Nick", r.Nickname(u2))

	// The historical log keeps all three claims.
	assert.Equal(t, uint64(3), r.ClaimsLength())
}

func TestReclaimOwnNicknameRejected(t *testing.T) {
	r, _ := newTestRegistry(t)
	ts := uint64(100)
	r.SetClock(func() uint64 { ts++; return ts })
	u1, _ := ids.AddressFromString("0x2222222222222222222222222222222222222222")

	require.NoError(t, r.SetNickname(u1, u1, "Nick"))
	// Holding "Nick" does not exempt you from the taken check.
	assert.ErrorIs(t, r.SetNickname(u1, u1, "Nick"), ErrNicknameTaken)
	assert.Equal(t, uint64(1), r.ClaimsLength())
}

func TestSignedClaim(t *testing.T) {
	r, _ := newTestRegistry(t)
	u1, err := wallet.NewWallet()
	require.NoError(t, err)

	c, sig := signedClaim(t, r, u1, "Signed", 10)
	require.NoError(t, r.SetNicknameSigned(c, sig))
	assert.Equal(t, "Signed", r.Nickname(u1.Address()))
}

func TestSignedClaimChecksOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	u1, err := wallet.NewWallet()
	require.NoError(t, err)

	c, sig := signedClaim(t, r, u1, "First", 10)
	require.NoError(t, r.SetNicknameSigned(c, sig))

	// Replay check runs before signature verification: an old timestamp is
	// rejected as stale even with garbage for a signature.
	old := typedhash.NicknameClaim{Account: u1.Address(), Nickname: "Old", Timestamp: 5}
	assert.ErrorIs(t, r.SetNicknameSigned(old, make([]byte, 65)), ErrTimestampNotGreater)

	// Fresh timestamp but signature by someone else.
	mallory, err := wallet.NewWallet()
	require.NoError(t, err)
	forged := typedhash.NicknameClaim{Account: u1.Address(), Nickname: "Forged", Timestamp: 20}
	forgedSig := mallory.SignDigest(r.hasher.NicknameDigest(forged))
	assert.ErrorIs(t, r.SetNicknameSigned(forged, forgedSig), ErrInvalidSignature)

	// Malformed signature length.
	bad := typedhash.NicknameClaim{Account: u1.Address(), Nickname: "Bad", Timestamp: 20}
	assert.ErrorIs(t, r.SetNicknameSigned(bad, []byte{1}), wallet.ErrInvalidSignatureFormat)
}

// The non-strict guard admits a claim at a timestamp equal to the last used
// one. A replayed identical claim dies on uniqueness instead, and a different
// nickname signed at the same timestamp goes through. Known boundary of the
// scheme; do not tighten the guard to close it.
func TestEqualTimestampBoundary(t *testing.T) {
	r, _ := newTestRegistry(t)
	u1, err := wallet.NewWallet()
	require.NoError(t, err)

	c, sig := signedClaim(t, r, u1, "Nick", 10)
	require.NoError(t, r.SetNicknameSigned(c, sig))

	// Byte-for-byte replay of the same claim: passes the guard, fails
	// uniqueness.
	assert.ErrorIs(t, r.SetNicknameSigned(c, sig), ErrNicknameTaken)

	// Different nickname at the same timestamp: accepted.
	c2, sig2 := signedClaim(t, r, u1, "Nick2", 10)
	require.NoError(t, r.SetNicknameSigned(c2, sig2))
	assert.Equal(t, "Nick2", r.Nickname(u1.Address()))
}

// A restarted node must see the full claim log and rebuild every derived
// index from it: latest nickname per account, the taken set (with freed
// strings claimable again) and each account's replay floor.
func TestRegistryReload(t *testing.T) {
	dir := t.TempDir()
	u1, err := wallet.NewWallet()
	require.NoError(t, err)

	store, err := storage.NewStore(dir)
	require.NoError(t, err)
	r, err := New(Config{Hasher: testHasher(), Bus: notify.NewBus(), Store: store})
	require.NoError(t, err)

	c, sig := signedClaim(t, r, u1, "Nick", 10)
	require.NoError(t, r.SetNicknameSigned(c, sig))
	c2, sig2 := signedClaim(t, r, u1, "Nick2", 20)
	require.NoError(t, r.SetNicknameSigned(c2, sig2))
	require.NoError(t, store.Close())

	store, err = storage.NewStore(dir)
	require.NoError(t, err)
	defer store.Close()
	r2, err := New(Config{Hasher: testHasher(), Bus: notify.NewBus(), Store: store})
	require.NoError(t, err)

	// Log and latest-nickname index survived the restart.
	assert.Equal(t, uint64(2), r2.ClaimsLength())
	assert.Equal(t, "Nick2", r2.Nickname(u1.Address()))

	// "Nick2" is still taken for everyone else.
	u2, err := wallet.NewWallet()
	require.NoError(t, err)
	taken, takenSig := signedClaim(t, r2, u2, "Nick2", 5)
	assert.ErrorIs(t, r2.SetNicknameSigned(taken, takenSig), ErrNicknameTaken)

	// The freed "Nick" is claimable again.
	freed, freedSig := signedClaim(t, r2, u2, "Nick", 6)
	require.NoError(t, r2.SetNicknameSigned(freed, freedSig))
	assert.Equal(t, "Nick", r2.Nickname(u2.Address()))

	// The first account's replay floor survived: a claim behind its last
	// used timestamp stays stale.
	stale, staleSig := signedClaim(t, r2, u1, "Stale", 15)
	assert.ErrorIs(t, r2.SetNicknameSigned(stale, staleSig), ErrTimestampNotGreater)
}

func TestClaimsPagination(t *testing.T) {
	r, _ := newTestRegistry(t)
	ts := uint64(0)
	r.SetClock(func() uint64 { ts++; return ts })

	for i := byte(1); i <= 4; i++ {
		var u ids.Address
		u[19] = i
		require.NoError(t, r.SetNickname(u, u, string(rune('a'+i))))
	}

	claims, err := r.Claims(1, 2)
	require.NoError(t, err)
	require.Len(t, claims, 2)

	_, err = r.Claims(2, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = r.Claims(0, 4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}
