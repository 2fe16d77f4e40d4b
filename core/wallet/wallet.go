package wallet

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"endorsegraph/core/typedhash"
	"endorsegraph/types/ids"
)

// SignatureSize is the length of a detached signature: 32-byte r, 32-byte s,
// 1-byte recovery id.
const SignatureSize = 65

// Wallet holds a secp256k1 keypair for signing structured digests.
type Wallet struct {
	priv *secp256k1.PrivateKey
}

// NewWallet generates a fresh keypair.
func NewWallet() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv}, nil
}

// FromHex loads a wallet from a hex-encoded 32-byte private key.
func FromHex(s string) (*Wallet, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}
	return &Wallet{priv: secp256k1.PrivKeyFromBytes(b)}, nil
}

// PrivateKeyHex exports the private key as hex. For dev tooling only.
func (w *Wallet) PrivateKeyHex() string {
	return hex.EncodeToString(w.priv.Serialize())
}

// Address derives the wallet's 20-byte identity from its public key.
func (w *Wallet) Address() ids.Address {
	return PubKeyAddress(w.priv.PubKey())
}

// SignDigest produces a detached r||s||v signature over a structured digest.
// The recovery id v is emitted as 27 or 28.
func (w *Wallet) SignDigest(digest ids.Digest) []byte {
	// SignCompact returns header-first [v, r, s]; rearrange to r||s||v.
	compact := secpecdsa.SignCompact(w.priv, digest[:], false)
	sig := make([]byte, SignatureSize)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] // already 27 + recovery id for uncompressed keys
	return sig
}

// PubKeyAddress hashes the uncompressed public key (minus the 0x04 prefix)
// and takes the low 20 bytes, the standard EVM address derivation.
func PubKeyAddress(pub *secp256k1.PublicKey) ids.Address {
	raw := pub.SerializeUncompressed()
	h := typedhash.Keccak256(raw[1:])
	var addr ids.Address
	copy(addr[:], h[12:])
	return addr
}
