package common

import (
	"encoding/json"
	"fmt"

	"github.com/openr-go/openr/kvstore"
)

// FloodMsgType names one of the four peer-to-peer message kinds carried
// by the flood protocol, per spec.md §6.
type FloodMsgType uint8

const (
	FloodMsgUnknown FloodMsgType = iota
	FloodMsgFullSyncReq
	FloodMsgFullSyncResp
	FloodMsgFlood
	FloodMsgKeepAlive
)

func (t FloodMsgType) String() string {
	switch t {
	case FloodMsgFullSyncReq:
		return "fullSyncReq"
	case FloodMsgFullSyncResp:
		return "fullSyncResp"
	case FloodMsgFlood:
		return "flood"
	case FloodMsgKeepAlive:
		return "keepAlive"
	default:
		return "unknown"
	}
}

func (t FloodMsgType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *FloodMsgType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "fullSyncReq":
		*t = FloodMsgFullSyncReq
	case "fullSyncResp":
		*t = FloodMsgFullSyncResp
	case "flood":
		*t = FloodMsgFlood
	case "keepAlive":
		*t = FloodMsgKeepAlive
	default:
		return fmt.Errorf("unknown flood message type: %s", s)
	}
	return nil
}

// KeyHashWire is the wire form of a key's compact incarnation summary
// carried by FullSyncReq, per §6's key_hashes field.
type KeyHashWire struct {
	Version      int64  `json:"version"`
	OriginatorId string `json:"originatorId"`
	Hash         uint64 `json:"hash"`
	HashSet      bool   `json:"hashSet"`
	TtlVersion   int64  `json:"ttlVersion"`
}

// FloodMessage is the single envelope type for all four peer protocol
// messages, mirroring the shape of the control-plane Message so both
// travel over the same transport/serializer stack.
type FloodMessage struct {
	Type FloodMsgType `json:"type"`
	Area string       `json:"area"`

	// SenderId names the node sending this message, letting the receiver
	// route it to the right Session (or answer directly if none exists
	// yet, per flood.Manager.Dispatch).
	SenderId string `json:"senderId,omitempty"`

	// FullSyncReq
	KeyHashes map[string]KeyHashWire `json:"keyHashes,omitempty"`

	// FullSyncResp / Flood
	KeyVals         map[string]*kvstore.Value `json:"keyVals,omitempty"`
	TobeUpdatedKeys []string                  `json:"tobeUpdatedKeys,omitempty"`

	// KeepAlive
	Seq uint64 `json:"seq,omitempty"`
}

// ToKeyHash converts a wire hash summary into a kvstore.KeyHash usable
// with Store.DumpDifference.
func (w KeyHashWire) ToKeyHash() kvstore.KeyHash {
	return kvstore.NewKeyHash(w.Version, w.OriginatorId, w.Hash, w.HashSet, w.TtlVersion)
}

// KeyHashWireOf converts one entry of the hash map returned by
// Store.HashesSnapshot into its wire form for a FullSyncReq.
func KeyHashWireOf(h kvstore.KeyHash) KeyHashWire {
	return KeyHashWire{
		Version:      h.Version,
		OriginatorId: h.OriginatorId,
		Hash:         h.Hash,
		HashSet:      h.HashSet,
		TtlVersion:   h.TtlVersion,
	}
}

// ToKeyHashMap converts a full wire hash map, as decoded from a
// FullSyncReq, into the map[string]kvstore.KeyHash shape Store.
// DumpDifference expects.
func ToKeyHashMap(wire map[string]KeyHashWire) map[string]kvstore.KeyHash {
	out := make(map[string]kvstore.KeyHash, len(wire))
	for k, w := range wire {
		out[k] = w.ToKeyHash()
	}
	return out
}

// KeyHashWireMapOf converts a map[string]kvstore.KeyHash, as returned by
// Store.HashesSnapshot, into the wire map a FullSyncReq carries.
func KeyHashWireMapOf(hashes map[string]kvstore.KeyHash) map[string]KeyHashWire {
	out := make(map[string]KeyHashWire, len(hashes))
	for k, h := range hashes {
		out[k] = KeyHashWireOf(h)
	}
	return out
}

func NewFullSyncReq(area string, hashes map[string]KeyHashWire) *FloodMessage {
	return &FloodMessage{Type: FloodMsgFullSyncReq, Area: area, KeyHashes: hashes}
}

func NewFullSyncResp(area string, keyVals map[string]*kvstore.Value, tobeUpdated []string) *FloodMessage {
	return &FloodMessage{Type: FloodMsgFullSyncResp, Area: area, KeyVals: keyVals, TobeUpdatedKeys: tobeUpdated}
}

func NewFlood(area string, keyVals map[string]*kvstore.Value) *FloodMessage {
	return &FloodMessage{Type: FloodMsgFlood, Area: area, KeyVals: keyVals}
}

func NewKeepAlive(area string, seq uint64) *FloodMessage {
	return &FloodMessage{Type: FloodMsgKeepAlive, Area: area, Seq: seq}
}
