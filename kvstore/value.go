// Package kvstore implements the Open/R-style KvStore replication core: an
// eventually-consistent, versioned key-value store with deterministic
// conflict resolution, TTL-based expiry, and three-way full-sync.
package kvstore

import (
	"bytes"

	"github.com/openr-go/openr/kvstore/internal/util"
)

// Area names an independent replication domain. Distinct areas share no
// state; a node may serve any number of them.
type Area = string

// DefaultArea is the reserved default area used when a caller does not
// name one explicitly.
const DefaultArea Area = "0"

// TTLInfinity is the sentinel TTL meaning "never expires in transit".
// Mirrors Constants::kTtlInfinity from the original implementation.
const TTLInfinity int64 = -1

// Value is the unit of replication: a versioned, originator-owned record
// with an optional payload and a TTL that decrements on every flood hop.
//
// Exactly one Value is stored per key per area at any time. A Value is
// mutated in place only along the TTL-refresh path (ttl, ttlVersion); any
// other change replaces the record outright.
type Value struct {
	Version      int64
	OriginatorId string
	Payload      []byte // nil means "TTL-only refresh", not "empty string"
	Ttl          int64  // milliseconds remaining, or TTLInfinity
	TtlVersion   int64
	Hash         uint64
	HashSet      bool // whether Hash has been computed; a wire Value may omit it
}

// HasPayload reports whether v carries a payload, as opposed to being a
// TTL-only refresh message.
func (v *Value) HasPayload() bool {
	return v.Payload != nil
}

// Valid reports whether v satisfies the storage invariants from the data
// model: version >= 1, and ttl > 0 or ttl == TTLInfinity. Values failing
// this check are dropped silently by the merge engine.
func (v *Value) Valid() bool {
	if v.Version < 1 {
		return false
	}
	if v.Ttl != TTLInfinity && v.Ttl <= 0 {
		return false
	}
	return true
}

// Digest computes the deterministic digest of (version, originatorId,
// payload). Collision-resistance requirements are modest: it only needs
// to distinguish incarnations well enough to skip a redundant payload
// compare, not to authenticate content.
func Digest(version int64, originatorId string, payload []byte) uint64 {
	return util.Digest(version, originatorId, payload)
}

// EnsureHash computes and stores v.Hash if it is not already set. Called
// on first store of an incarnation, since the hash may be omitted on the
// wire.
func (v *Value) EnsureHash() {
	if v.HashSet {
		return
	}
	v.Hash = Digest(v.Version, v.OriginatorId, v.Payload)
	v.HashSet = true
}

// Clone returns a deep copy of v, safe to hand to a peer or subscriber
// independent of the Store's own copy.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	cp := *v
	if v.Payload != nil {
		cp.Payload = append([]byte(nil), v.Payload...)
	}
	return &cp
}

// Compare results, per §4.1. -2 means "unknown / ambiguous".
const (
	CmpUnknown = -2
	CmpLess    = -1
	CmpEqual   = 0
	CmpGreater = 1
)

// CompareValues implements the total-ish order used for conflict
// resolution. It must be reproduced bit-exact across implementations,
// grounded directly on compareValues in the original KvStoreUtil source:
//
//  1. version differs -> sign of the difference
//  2. originator differs -> lexicographic sign
//  3. both hashes present and equal -> sign of ttlVersion difference
//  4. both payloads present -> lexicographic sign of payloads
//  5. otherwise -> CmpUnknown
func CompareValues(a, b *Value) int {
	if a.Version != b.Version {
		if a.Version < b.Version {
			return CmpLess
		}
		return CmpGreater
	}

	if a.OriginatorId != b.OriginatorId {
		if a.OriginatorId < b.OriginatorId {
			return CmpLess
		}
		return CmpGreater
	}

	if a.HashSet && b.HashSet && a.Hash == b.Hash {
		switch {
		case a.TtlVersion < b.TtlVersion:
			return CmpLess
		case a.TtlVersion > b.TtlVersion:
			return CmpGreater
		default:
			return CmpEqual
		}
	}

	if a.HasPayload() && b.HasPayload() {
		switch bytes.Compare(a.Payload, b.Payload) {
		case -1:
			return CmpLess
		case 1:
			return CmpGreater
		default:
			return CmpEqual
		}
	}

	return CmpUnknown
}
