package kvstore

// Publication is the unit emitted on the subscription stream and carried
// as the payload of full-sync responses and floods: a batch of accepted
// or offered key-values plus the keys that expired since the last batch.
type Publication struct {
	Area        Area
	KeyVals     map[string]*Value
	ExpiredKeys []string
	// TobeUpdatedKeys names keys the *recipient* of this publication
	// should send back, used only by the diff engine's response leg.
	TobeUpdatedKeys []string
	// SourcePeer names the peer a flood batch arrived from, empty for
	// locally-originated writes. Consulted by the flood layer to avoid
	// reflecting a delta back to the peer that just sent it.
	SourcePeer string
}

// dumpDifference computes the three-way full-sync publication a store
// should send in response to a peer's request map, grounded line-for-line
// on dumpDifference in the original KvStoreUtil source.
//
//   - keyVals: entries the requester should accept: local entries that are
//     strictly better than the requester's, or ambiguous, plus entries
//     present only locally.
//   - tobeUpdatedKeys: keys where the requester is strictly better, or
//     ambiguous, plus keys present only in the requester's map.
func dumpDifference(myMap, reqMap map[string]*Value) Publication {
	keyVals := make(map[string]*Value)
	var tobeUpdated []string

	for key, myVal := range myMap {
		reqVal, ok := reqMap[key]
		if !ok {
			keyVals[key] = myVal.Clone()
			continue
		}

		switch cmp := CompareValues(myVal, reqVal); cmp {
		case CmpGreater:
			keyVals[key] = myVal.Clone()
		case CmpUnknown:
			keyVals[key] = myVal.Clone()
			tobeUpdated = append(tobeUpdated, key)
		case CmpLess:
			tobeUpdated = append(tobeUpdated, key)
		}
	}

	for key := range reqMap {
		if _, ok := myMap[key]; !ok {
			tobeUpdated = append(tobeUpdated, key)
		}
	}

	return Publication{
		KeyVals:         keyVals,
		TobeUpdatedKeys: tobeUpdated,
	}
}

// KeyHash is the compact per-key summary a FullSyncReq carries instead of
// full Values, per §6's FullSyncReq field: key_hashes.
type KeyHash struct {
	Version      int64
	OriginatorId string
	Hash         uint64
	HashSet      bool
	TtlVersion   int64
}

// NewKeyHash builds a KeyHash from its wire fields, for callers (the flood
// transport) reconstructing one from a decoded FullSyncReq.
func NewKeyHash(version int64, originatorId string, hash uint64, hashSet bool, ttlVersion int64) KeyHash {
	return KeyHash{
		Version:      version,
		OriginatorId: originatorId,
		Hash:         hash,
		HashSet:      hashSet,
		TtlVersion:   ttlVersion,
	}
}

// toValueForCompare rebuilds enough of a Value from a KeyHash to run it
// through CompareValues. Since KeyHash never carries a payload, a compare
// against a hash-only value can only ever resolve via steps 1-3; if it
// would need step 4 (payload compare) both sides fall back to CmpUnknown,
// which the diff engine already treats conservatively.
func (h KeyHash) toValueForCompare() *Value {
	return &Value{
		Version:      h.Version,
		OriginatorId: h.OriginatorId,
		Hash:         h.Hash,
		HashSet:      h.HashSet,
		TtlVersion:   h.TtlVersion,
	}
}

// hashesOf reduces a key-value map to the compact hash map carried on the
// wire by FullSyncReq.
func hashesOf(m map[string]*Value) map[string]KeyHash {
	out := make(map[string]KeyHash, len(m))
	for k, v := range m {
		out[k] = KeyHash{
			Version:      v.Version,
			OriginatorId: v.OriginatorId,
			Hash:         v.Hash,
			HashSet:      v.HashSet,
			TtlVersion:   v.TtlVersion,
		}
	}
	return out
}

// dumpDifferenceFromHashes is dumpDifference specialized for the first
// full-sync leg, where the requester sends key_hashes instead of full
// Values (§4.5, §6 FullSyncReq).
func dumpDifferenceFromHashes(myMap map[string]*Value, reqHashes map[string]KeyHash) Publication {
	reqMap := make(map[string]*Value, len(reqHashes))
	for k, h := range reqHashes {
		reqMap[k] = h.toValueForCompare()
	}
	return dumpDifference(myMap, reqMap)
}
