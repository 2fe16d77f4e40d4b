package auth

import (
	"endorsegraph/types/ids"
)

// Action names a gated operation.
type Action string

const (
	ActionEndorse     Action = "endorse"
	ActionSetMetadata Action = "set_metadata"
)

// Predicate decides whether an identity may perform an action. Role storage
// and administration live outside the core; the ledger only consults this.
type Predicate func(caller ids.Address, action Action) bool

// AllowAll grants every action. Used by tests and single-operator dev nodes.
func AllowAll(ids.Address, Action) bool { return true }

// DenyAll grants nothing.
func DenyAll(ids.Address, Action) bool { return false }

// StaticRoles is a fixed in-memory role table satisfying Predicate via
// Allowed. Endorsers may endorse; admins may update metadata.
type StaticRoles struct {
	Endorsers map[ids.Address]bool
	Admins    map[ids.Address]bool
}

func (r *StaticRoles) Allowed(caller ids.Address, action Action) bool {
	switch action {
	case ActionEndorse:
		return r.Endorsers[caller]
	case ActionSetMetadata:
		return r.Admins[caller]
	}
	return false
}
