package ids

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Address is a 20-byte account identity derived from a secp256k1 public key.
type Address [20]byte

// Digest is a 32-byte signing payload hash.
type Digest [32]byte

// ZeroAddress is the zero-value Address (all zeros). Signature recovery
// failures resolve to this sentinel and must never match a real signer.
var ZeroAddress Address

// AddressFromString parses a hex string (with or without 0x prefix) into an Address.
func AddressFromString(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, err
	}
	if len(b) != len(addr) {
		return addr, errors.New("address must be 20 bytes")
	}
	copy(addr[:], b)
	return addr, nil
}

// String converts an Address back to a 0x-prefixed hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// MarshalText renders the address as 0x-prefixed hex, so JSON payloads and
// stored records carry readable identities.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a hex address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromString(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// String converts a Digest to a hex string.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestFromString parses a hex string into a Digest.
func DigestFromString(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return d, err
	}
	if len(b) != len(d) {
		return d, errors.New("digest must be 32 bytes")
	}
	copy(d[:], b)
	return d, nil
}
