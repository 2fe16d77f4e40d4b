package replay

import (
	"errors"

	"endorsegraph/types/ids"
)

// ErrTimestampNotIncreasing is returned when a submission's timestamp does
// not advance past (or, for non-strict guards, reach) the identity's last
// accepted timestamp.
var ErrTimestampNotIncreasing = errors.New("timestamp not increasing")

// Guard tracks the last accepted submission timestamp per identity.
//
// A strict guard rejects ts <= last; a non-strict guard rejects ts < last,
// admitting an equal resubmission timestamp. The two consumers of this guard
// rely on exactly that asymmetry, so the flag is fixed at construction.
type Guard struct {
	strict bool
	last   map[ids.Address]uint64
}

func NewStrict() *Guard {
	return &Guard{strict: true, last: make(map[ids.Address]uint64)}
}

func NewNonStrict() *Guard {
	return &Guard{strict: false, last: make(map[ids.Address]uint64)}
}

// Check validates a timestamp against the identity's last accepted one. It
// never mutates state; call Commit after every other submission check passed.
func (g *Guard) Check(id ids.Address, ts uint64) error {
	last, ok := g.last[id]
	if !ok {
		return nil
	}
	if g.strict {
		if ts <= last {
			return ErrTimestampNotIncreasing
		}
	} else if ts < last {
		return ErrTimestampNotIncreasing
	}
	return nil
}

// Commit records ts as the identity's last accepted timestamp.
func (g *Guard) Commit(id ids.Address, ts uint64) {
	g.last[id] = ts
}

// Last returns the identity's last accepted timestamp (zero if none).
func (g *Guard) Last(id ids.Address) uint64 {
	return g.last[id]
}
