package typedhash

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"endorsegraph/types/ids"
)

// Canonical type signatures. The endorsement type appends the Score type it
// references, so the type hash commits to the full nested shape.
const (
	domainTypeString      = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	scoreTypeString       = "Score(uint256 topicId,int8 score,uint8 confidence)"
	endorsementTypeString = "Endorsement(uint256 timestamp,address from,address to,address graphId,Score[] scores)" + scoreTypeString
	nicknameTypeString    = "Nickname(address account,string nickname,uint256 timestamp)"
)

var (
	domainTypeHash      = Keccak256([]byte(domainTypeString))
	scoreTypeHash       = Keccak256([]byte(scoreTypeString))
	endorsementTypeHash = Keccak256([]byte(endorsementTypeString))
	nicknameTypeHash    = Keccak256([]byte(nicknameTypeString))
)

// Score is one scored relationship inside an endorsement submission.
type Score struct {
	TopicID    uint64 `json:"topicId"`
	Score      int8   `json:"score"`
	Confidence uint8  `json:"confidence"`
}

// Endorsement is the transient submission payload. One ScoreRecord is stored
// per element of Scores; the struct itself is never persisted.
type Endorsement struct {
	Timestamp uint64      `json:"timestamp"`
	From      ids.Address `json:"from"`
	To        ids.Address `json:"to"`
	GraphID   ids.Address `json:"graphId"`
	Scores    []Score     `json:"scores"`
}

// NicknameClaim is the nickname submission payload.
type NicknameClaim struct {
	Account   ids.Address `json:"account"`
	Nickname  string      `json:"nickname"`
	Timestamp uint64      `json:"timestamp"`
}

// Keccak256 hashes the concatenation of the given byte slices with legacy
// Keccak-256 (the pre-NIST padding used by EVM tooling).
func Keccak256(data ...[]byte) ids.Digest {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out ids.Digest
	h.Sum(out[:0])
	return out
}

// Domain fixes the deployment the digests are bound to. Signatures produced
// under one domain never verify under another.
type Domain struct {
	Name        string
	Version     string
	ChainID     uint64
	VerifyingID ids.Address
}

// Hasher computes domain-separated structured digests. It is pure: the same
// record always yields the same digest.
type Hasher struct {
	separator ids.Digest
}

func NewHasher(d Domain) *Hasher {
	nameHash := Keccak256([]byte(d.Name))
	versionHash := Keccak256([]byte(d.Version))
	sep := Keccak256(
		domainTypeHash[:],
		nameHash[:],
		versionHash[:],
		wordUint(d.ChainID),
		wordAddress(d.VerifyingID),
	)
	return &Hasher{separator: sep}
}

// Separator returns the domain separator digest.
func (h *Hasher) Separator() ids.Digest {
	return h.separator
}

// EndorsementDigest returns the signable digest for an endorsement.
func (h *Hasher) EndorsementDigest(e Endorsement) ids.Digest {
	structHash := hashEndorsementStruct(e)
	return h.finalize(structHash)
}

// NicknameDigest returns the signable digest for a nickname claim.
func (h *Hasher) NicknameDigest(c NicknameClaim) ids.Digest {
	nickHash := Keccak256([]byte(c.Nickname))
	structHash := Keccak256(
		nicknameTypeHash[:],
		wordAddress(c.Account),
		nickHash[:],
		wordUint(c.Timestamp),
	)
	return h.finalize(structHash)
}

// finalize prepends the 0x19 0x01 version bytes and the domain separator.
func (h *Hasher) finalize(structHash ids.Digest) ids.Digest {
	return Keccak256([]byte{0x19, 0x01}, h.separator[:], structHash[:])
}

func hashScoreStruct(s Score) ids.Digest {
	return Keccak256(
		scoreTypeHash[:],
		wordUint(s.TopicID),
		wordInt8(s.Score),
		wordUint(uint64(s.Confidence)),
	)
}

func hashEndorsementStruct(e Endorsement) ids.Digest {
	// Array fields hash each element independently, then hash the
	// concatenation of those digests.
	elems := make([]byte, 0, len(e.Scores)*32)
	for _, s := range e.Scores {
		sh := hashScoreStruct(s)
		elems = append(elems, sh[:]...)
	}
	scoresHash := Keccak256(elems)
	return Keccak256(
		endorsementTypeHash[:],
		wordUint(e.Timestamp),
		wordAddress(e.From),
		wordAddress(e.To),
		wordAddress(e.GraphID),
		scoresHash[:],
	)
}

// wordUint encodes an unsigned integer as a 32-byte big-endian word.
func wordUint(v uint64) []byte {
	w := make([]byte, 32)
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

// wordInt8 sign-extends a signed 8-bit integer to a 32-byte word.
func wordInt8(v int8) []byte {
	w := make([]byte, 32)
	if v < 0 {
		for i := range w {
			w[i] = 0xff
		}
	}
	w[31] = byte(v)
	return w
}

// wordAddress left-pads a 20-byte address to a 32-byte word.
func wordAddress(a ids.Address) []byte {
	w := make([]byte, 32)
	copy(w[12:], a[:])
	return w
}
