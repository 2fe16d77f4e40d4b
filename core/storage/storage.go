package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Log key layout:
//   <prefix>:%016d   -> entry payload (optionally sealed, see encrypt.go)
//   count:<prefix>   -> big-endian entry count
// Entries are written once and never rewritten, so indices stay stable.
const (
	ScoreLog    = "score"
	NicknameLog = "nick"
	TopicLog    = "topic"
)

// Store persists the append-only record logs and small metadata values in
// LevelDB.
type Store struct {
	db  *leveldb.DB
	box *cipherBox // nil when at-rest encryption is disabled
}

func NewStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	box, err := newCipherBoxFromEnv()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, box: box}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes items to the end of the named log in one batch, together
// with any metadata updates, so a fan-out submission lands atomically or not
// at all.
func (s *Store) Append(log string, items [][]byte, meta map[string][]byte) error {
	n, err := s.Length(log)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for i, item := range items {
		payload := item
		if s.box != nil {
			payload, err = s.box.seal(item)
			if err != nil {
				return err
			}
		}
		batch.Put(entryKey(log, n+uint64(i)), payload)
	}
	if len(items) > 0 {
		batch.Put(countKey(log), u64be(n+uint64(len(items))))
	}
	for k, v := range meta {
		batch.Put([]byte("meta:"+k), v)
	}
	return s.db.Write(batch, nil)
}

// Length returns how many entries the named log holds.
func (s *Store) Length(log string) (uint64, error) {
	v, err := s.db.Get(countKey(log), nil)
	if err == errors.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// Range reads entries fromIndex..toIndex inclusive. Bounds are the caller's
// responsibility; a missing key is reported as an error, never skipped.
func (s *Store) Range(log string, fromIndex, toIndex uint64) ([][]byte, error) {
	out := make([][]byte, 0, toIndex-fromIndex+1)
	for i := fromIndex; i <= toIndex; i++ {
		v, err := s.db.Get(entryKey(log, i), nil)
		if err != nil {
			return nil, fmt.Errorf("read %s[%d]: %w", log, i, err)
		}
		if s.box != nil {
			v, err = s.box.open(v)
			if err != nil {
				return nil, fmt.Errorf("unseal %s[%d]: %w", log, i, err)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// PutMeta stores a small mutable metadata value (not part of any log).
func (s *Store) PutMeta(key string, value []byte) error {
	return s.db.Put([]byte("meta:"+key), value, nil)
}

// GetMeta reads a metadata value; missing keys return (nil, nil).
func (s *Store) GetMeta(key string) ([]byte, error) {
	v, err := s.db.Get([]byte("meta:"+key), nil)
	if err == errors.ErrNotFound {
		return nil, nil
	}
	return v, err
}

// MetaByPrefix returns all metadata values whose key starts with prefix,
// keyed by the remainder of the key.
func (s *Store) MetaByPrefix(prefix string) (map[string][]byte, error) {
	full := "meta:" + prefix
	out := make(map[string][]byte)
	iter := s.db.NewIterator(util.BytesPrefix([]byte(full)), nil)
	defer iter.Release()
	for iter.Next() {
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		out[string(iter.Key())[len(full):]] = v
	}
	return out, iter.Error()
}

// EncodeUint64 renders a counter or timestamp as stored bytes.
func EncodeUint64(v uint64) []byte {
	return u64be(v)
}

// DecodeUint64 parses bytes written by EncodeUint64.
func DecodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func entryKey(log string, i uint64) []byte {
	return []byte(fmt.Sprintf("%s:%016d", log, i))
}

func countKey(log string) []byte {
	return []byte("count:" + log)
}

func u64be(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
