package kvstore

import "bytes"

// RejectReason names why a merge engine dropped an incoming Value.
// Recorded as a counter (kvmetrics), never surfaced to the caller as an
// error: setKeyVals returns only the accepted keys, letting the caller
// infer rejections from their absence.
type RejectReason uint8

const (
	RejectFiltered RejectReason = iota
	RejectBadTtl
	RejectOldVersion
	RejectNoIncarnationBump // TTL-only message with version > local, per the Open Question
	RejectStaleTtlOnly
	RejectNoOp // valid but identical to what's already stored
)

func (r RejectReason) String() string {
	switch r {
	case RejectFiltered:
		return "filtered"
	case RejectBadTtl:
		return "bad_ttl"
	case RejectOldVersion:
		return "old_version"
	case RejectNoIncarnationBump:
		return "no_incarnation_bump"
	case RejectStaleTtlOnly:
		return "stale_ttl_only"
	case RejectNoOp:
		return "no_op"
	default:
		return "unknown"
	}
}

// updateKind distinguishes a full record replacement from a TTL-only
// refresh of the stored record, per §4.3 step 5.
type updateKind uint8

const (
	updateNone updateKind = iota
	updateAll
	updateTtl
)

// mergeKeyValues applies incoming against local in place and returns the
// accepted delta plus the reasons any rejected entries were dropped.
// Pure with respect to its inputs other than the in-place mutation of
// local (the Store's authoritative map) — grounded line-for-line on
// mergeKeyValues in the original KvStoreUtil source.
//
// filter may be nil, meaning match-all.
func mergeKeyValues(local map[string]*Value, incoming map[string]*Value, filter *Filter) (delta map[string]*Value, rejects map[string]RejectReason) {
	delta = make(map[string]*Value)
	rejects = make(map[string]RejectReason)

	for key, vIn := range incoming {
		if vIn == nil {
			continue
		}

		if filter != nil && !filter.Match(key, vIn) {
			rejects[key] = RejectFiltered
			continue
		}

		if vIn.Ttl != TTLInfinity && vIn.Ttl <= 0 {
			rejects[key] = RejectBadTtl
			continue
		}

		if vIn.Version <= 0 {
			rejects[key] = RejectOldVersion
			continue
		}

		vMy, exists := local[key]
		myVersion := int64(0)
		if exists {
			myVersion = vMy.Version
		}

		if vIn.Version < myVersion {
			rejects[key] = RejectOldVersion
			continue
		}

		kind, reason := decideUpdate(exists, vMy, vIn, myVersion)
		if kind == updateNone {
			rejects[key] = reason
			continue
		}

		accepted := applyUpdate(local, key, exists, vMy, vIn, kind)
		delta[key] = accepted
	}

	return delta, rejects
}

// decideUpdate implements §4.3 step 5.
func decideUpdate(exists bool, vMy, vIn *Value, myVersion int64) (updateKind, RejectReason) {
	if vIn.HasPayload() {
		if vIn.Version > myVersion {
			return updateAll, 0
		}
		// same version from here on; exists is guaranteed true since
		// valid versions are >= 1 and an absent key has myVersion == 0.
		if vIn.OriginatorId > vMy.OriginatorId {
			return updateAll, 0
		}
		if vIn.OriginatorId == vMy.OriginatorId {
			cmp := comparePayloads(vIn.Payload, vMy.Payload)
			if cmp > 0 {
				return updateAll, 0
			}
			if cmp == 0 && vIn.TtlVersion > vMy.TtlVersion {
				return updateTtl, 0
			}
		}
		return updateNone, RejectNoOp

	}

	// TTL-only message. Per the resolved Open Question: a TTL-only
	// message never creates a new incarnation, and a TTL-only message
	// whose version exceeds the stored version is invalid, not merely
	// ignored.
	if !exists {
		return updateNone, RejectStaleTtlOnly
	}
	if vIn.Version > myVersion {
		return updateNone, RejectNoIncarnationBump
	}
	if vIn.Version == myVersion && vIn.OriginatorId == vMy.OriginatorId && vIn.TtlVersion > vMy.TtlVersion {
		return updateTtl, 0
	}
	return updateNone, RejectStaleTtlOnly
}

func comparePayloads(a, b []byte) int {
	return bytes.Compare(a, b)
}

// applyUpdate mutates local[key] per kind and returns the value now
// stored, ready to be placed in the delta map.
func applyUpdate(local map[string]*Value, key string, exists bool, vMy, vIn *Value, kind updateKind) *Value {
	switch kind {
	case updateAll:
		stored := vIn.Clone()
		stored.EnsureHash()
		local[key] = stored
		return stored.Clone()
	case updateTtl:
		vMy.Ttl = vIn.Ttl
		vMy.TtlVersion = vIn.TtlVersion
		return vMy.Clone()
	default:
		_ = exists
		return nil
	}
}
