package wallet

import (
	"errors"
	"fmt"

	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"endorsegraph/types/ids"
)

var (
	// ErrInvalidSignatureFormat means the signature is not exactly 65 bytes.
	ErrInvalidSignatureFormat = errors.New("signature must be 65 bytes (r||s||v)")
	// ErrRecoveryFailed means no public key could be recovered from the
	// digest/signature pair.
	ErrRecoveryFailed = errors.New("public key recovery failed")
)

// RecoverSigner recovers the identity that signed the given digest. On any
// failure it returns the zero address and a non-nil error; callers must treat
// the zero address as matching no signer.
func RecoverSigner(digest ids.Digest, sig []byte) (ids.Address, error) {
	if len(sig) != SignatureSize {
		return ids.ZeroAddress, ErrInvalidSignatureFormat
	}

	// RecoverCompact wants header-first [v, r, s] with v in 27..30.
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return ids.ZeroAddress, fmt.Errorf("%w: recovery id %d out of range", ErrRecoveryFailed, sig[64])
	}
	compact := make([]byte, SignatureSize)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return ids.ZeroAddress, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return PubKeyAddress(pub), nil
}
