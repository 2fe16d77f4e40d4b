package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"endorsegraph/core/typedhash"
	"endorsegraph/types/ids"
)

func testDigest(t *testing.T, seed string) ids.Digest {
	t.Helper()
	return typedhash.Keccak256([]byte(seed))
}

func TestSignRecoverRoundTrip(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	digest := testDigest(t, "round trip")
	sig := w.SignDigest(digest)
	require.Len(t, sig, SignatureSize)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), recovered)
}

func TestRecoverVZeroOne(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	digest := testDigest(t, "v normalization")
	sig := w.SignDigest(digest)
	sig[64] -= 27 // some signers emit v as 0/1

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), recovered)
}

func TestRecoverRejectsBadLength(t *testing.T) {
	digest := testDigest(t, "short sig")
	_, err := RecoverSigner(digest, make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)

	_, err = RecoverSigner(digest, make([]byte, 66))
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)
}

func TestRecoverDifferentDigestDifferentSigner(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	sig := w.SignDigest(testDigest(t, "signed payload"))
	recovered, err := RecoverSigner(testDigest(t, "other payload"), sig)
	if err == nil {
		// Recovery can still succeed on an unrelated digest, but it must
		// resolve to some other identity.
		assert.NotEqual(t, w.Address(), recovered)
	}
}

func TestRecoverFlippedSignatureBit(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	digest := testDigest(t, "bit flip")
	sig := w.SignDigest(digest)
	sig[10] ^= 0x01

	recovered, err := RecoverSigner(digest, sig)
	if err == nil {
		assert.NotEqual(t, w.Address(), recovered)
	} else {
		assert.True(t, recovered.IsZero())
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	w2, err := FromHex(w.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, w.Address(), w2.Address())

	_, err = FromHex("deadbeef")
	assert.Error(t, err)
}

func TestEnvWalletLoader(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	t.Setenv("ENDORSEGRAPH_SIGNER_PRIVKEY", w.PrivateKeyHex())
	loader := EnvWalletLoader{}
	loaded, err := loader.LoadWallet()
	require.NoError(t, err)
	assert.Equal(t, w.Address(), loaded.Address())
}
