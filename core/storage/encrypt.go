package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"os"
)

// cipherBox seals log entries with AES-256-GCM before they hit disk. The
// Data Encryption Key comes from ENDORSEGRAPH_DEK (base64, 32 bytes after
// decoding); when the variable is unset entries are stored in the clear.
type cipherBox struct {
	aead cipher.AEAD
}

func newCipherBoxFromEnv() (*cipherBox, error) {
	dekB64 := os.Getenv("ENDORSEGRAPH_DEK")
	if dekB64 == "" {
		return nil, nil
	}
	dek, err := base64.StdEncoding.DecodeString(dekB64)
	if err != nil {
		return nil, errors.New("failed to decode ENDORSEGRAPH_DEK: " + err.Error())
	}
	if len(dek) != 32 {
		return nil, errors.New("ENDORSEGRAPH_DEK must be 32 bytes (base64-encoded)")
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &cipherBox{aead: aead}, nil
}

func (c *cipherBox) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *cipherBox) open(sealed []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := sealed[:nonceSize], sealed[nonceSize:]
	return c.aead.Open(nil, nonce, ct, nil)
}
