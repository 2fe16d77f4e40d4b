package storage

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLengthRange(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Length(ScoreLog)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Append(ScoreLog, [][]byte{[]byte("a"), []byte("b")}, nil))
	require.NoError(t, s.Append(ScoreLog, [][]byte{[]byte("c")}, nil))

	n, err = s.Length(ScoreLog)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	got, err := s.Range(ScoreLog, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, got)

	got, err = s.Range(ScoreLog, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b")}, got)

	_, err = s.Range(ScoreLog, 2, 3)
	assert.Error(t, err)
}

func TestLogsAreIndependent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(ScoreLog, [][]byte{[]byte("score")}, nil))
	require.NoError(t, s.Append(NicknameLog, [][]byte{[]byte("nick")}, nil))

	n, err := s.Length(NicknameLog)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	got, err := s.Range(NicknameLog, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("nick"), got[0])
}

func TestAppendCarriesMeta(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	// An empty item slice with metadata must leave the log length alone
	// while still landing the metadata.
	require.NoError(t, s.Append(ScoreLog, nil, map[string][]byte{
		"replay:score:0xaa": EncodeUint64(7),
	}))
	n, err := s.Length(ScoreLog)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Append(ScoreLog, [][]byte{[]byte("r")}, map[string][]byte{
		"replay:score:0xbb": EncodeUint64(9),
	}))

	floors, err := s.MetaByPrefix("replay:score:")
	require.NoError(t, err)
	require.Len(t, floors, 2)
	assert.Equal(t, uint64(7), DecodeUint64(floors["0xaa"]))
	assert.Equal(t, uint64(9), DecodeUint64(floors["0xbb"]))

	// Other metadata stays out of the prefix scan.
	require.NoError(t, s.PutMeta("metadataURI", []byte("ipfs://x")))
	floors, err = s.MetaByPrefix("replay:score:")
	require.NoError(t, err)
	assert.Len(t, floors, 2)
}

func TestReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Append(ScoreLog, [][]byte{[]byte("persisted")}, nil))
	require.NoError(t, s.PutMeta("metadataURI", []byte("ipfs://x")))
	require.NoError(t, s.Close())

	s, err = NewStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Range(ScoreLog, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got[0])

	meta, err := s.GetMeta("metadataURI")
	require.NoError(t, err)
	assert.Equal(t, []byte("ipfs://x"), meta)

	missing, err := s.GetMeta("nothing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAtRestEncryption(t *testing.T) {
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)
	t.Setenv("ENDORSEGRAPH_DEK", base64.StdEncoding.EncodeToString(dek))

	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NotNil(t, s.box, "DEK in env must enable sealing")

	require.NoError(t, s.Append(ScoreLog, [][]byte{[]byte("secret record")}, nil))

	// The raw stored bytes must not leak the plaintext.
	raw, err := s.db.Get(entryKey(ScoreLog, 0), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret record")

	got, err := s.Range(ScoreLog, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret record"), got[0])
	require.NoError(t, s.Close())

	// Reopen with the same DEK.
	s, err = NewStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err = s.Range(ScoreLog, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret record"), got[0])
}

func TestBadDEKRejected(t *testing.T) {
	t.Setenv("ENDORSEGRAPH_DEK", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err := NewStore(t.TempDir())
	assert.Error(t, err)
}
