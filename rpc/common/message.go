package common

import (
	"encoding/json"
	"fmt"

	"github.com/openr-go/openr/kvstore"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// FilterSpec is the wire-safe description of a kvstore.Filter: the
// compiled Filter itself is not serializable (regexp.Regexp, xsync.MapOf),
// so requests carry this instead and the server side compiles it via
// kvstore.NewFilter.
type FilterSpec struct {
	KeyPrefixRegexes []string `json:"keyPrefixRegexes,omitempty"`
	OriginatorIds    []string `json:"originatorIds,omitempty"`
	Operator         string   `json:"operator,omitempty"`
}

// Compile turns a FilterSpec into a live kvstore.Filter. A nil spec
// compiles to a match-all filter.
func (fs *FilterSpec) Compile() (*kvstore.Filter, error) {
	if fs == nil {
		return kvstore.MatchAllFilter(), nil
	}
	op, err := kvstore.ParseFilterOperator(fs.Operator)
	if err != nil {
		return nil, err
	}
	return kvstore.NewFilter(fs.KeyPrefixRegexes, fs.OriginatorIds, op)
}

// Message is the control-plane request/response envelope. Which fields
// are populated depends on MsgType; unused fields are left zero.
type Message struct {
	MsgType MessageType `json:"msg_type"`

	Area string `json:"area,omitempty"`

	// keyGetValues / keyDel requests
	Keys []string `json:"keys,omitempty"`

	// keySetValues request
	KeyVals map[string]*kvstore.Value `json:"keyVals,omitempty"`

	// keyDumpAll / subscribeKvStore requests
	Filter *FilterSpec `json:"filter,omitempty"`

	// keyGetValues / keyDumpAll / subscribeKvStore responses
	Publication *kvstore.Publication `json:"publication,omitempty"`

	// keySetValues response
	AcceptedKeys []string `json:"acceptedKeys,omitempty"`

	// peerAdd request
	PeerSpec *kvstore.PeerSpec `json:"peerSpec,omitempty"`
	// peerDel request
	PeerId string `json:"peerId,omitempty"`
	// peerDump response
	Peers []kvstore.PeerSpec `json:"peers,omitempty"`

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

func NewKeyGetValuesRequest(area string, keys []string) *Message {
	return &Message{MsgType: MsgTKeyGetValues, Area: area, Keys: keys}
}

func NewKeyGetValuesResponse(pub *kvstore.Publication, err error) *Message {
	return withErr(&Message{MsgType: MsgTKeyGetValues, Publication: pub}, err)
}

func NewKeyDumpAllRequest(area string, filter *FilterSpec) *Message {
	return &Message{MsgType: MsgTKeyDumpAll, Area: area, Filter: filter}
}

func NewKeyDumpAllResponse(pub *kvstore.Publication, err error) *Message {
	return withErr(&Message{MsgType: MsgTKeyDumpAll, Publication: pub}, err)
}

func NewKeySetValuesRequest(area string, keyVals map[string]*kvstore.Value) *Message {
	return &Message{MsgType: MsgTKeySetValues, Area: area, KeyVals: keyVals}
}

func NewKeySetValuesResponse(accepted []string, err error) *Message {
	return withErr(&Message{MsgType: MsgTKeySetValues, AcceptedKeys: accepted}, err)
}

func NewKeyDelRequest(area string, keys []string) *Message {
	return &Message{MsgType: MsgTKeyDel, Area: area, Keys: keys}
}

func NewKeyDelResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKeyDel}, err)
}

func NewPeerAddRequest(area string, spec kvstore.PeerSpec) *Message {
	return &Message{MsgType: MsgTPeerAdd, Area: area, PeerSpec: &spec}
}

func NewPeerAddResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTPeerAdd}, err)
}

func NewPeerDelRequest(area, peerId string) *Message {
	return &Message{MsgType: MsgTPeerDel, Area: area, PeerId: peerId}
}

func NewPeerDelResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTPeerDel}, err)
}

func NewPeerDumpRequest(area string) *Message {
	return &Message{MsgType: MsgTPeerDump, Area: area}
}

func NewPeerDumpResponse(peers []kvstore.PeerSpec, err error) *Message {
	return withErr(&Message{MsgType: MsgTPeerDump, Peers: peers}, err)
}

func NewSubscribeKvStoreRequest(area string, filter *FilterSpec) *Message {
	return &Message{MsgType: MsgTSubscribeKvStore, Area: area, Filter: filter}
}

// NewSubscribeKvStoreUpdate wraps one Publication delivered over an
// established subscription stream (long-polled or pushed, depending on
// the transport).
func NewSubscribeKvStoreUpdate(pub *kvstore.Publication) *Message {
	return &Message{MsgType: MsgTSubscribeKvStore, Publication: pub}
}

func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err}
}

func withErr(msg *Message, err error) *Message {
	if err != nil {
		msg.Err = err.Error()
	} else {
		msg.Ok = true
	}
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

func (t MessageType) String() string {
	switch t {
	case MsgTKeyGetValues:
		return "keyGetValues"
	case MsgTKeyDumpAll:
		return "keyDumpAll"
	case MsgTKeySetValues:
		return "keySetValues"
	case MsgTKeyDel:
		return "keyDel"
	case MsgTPeerAdd:
		return "peerAdd"
	case MsgTPeerDel:
		return "peerDel"
	case MsgTPeerDump:
		return "peerDump"
	case MsgTSubscribeKvStore:
		return "subscribeKvStore"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler so MessageType is serialized as
// a string on the wire instead of a raw integer.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "keyGetValues":
		*t = MsgTKeyGetValues
	case "keyDumpAll":
		*t = MsgTKeyDumpAll
	case "keySetValues":
		*t = MsgTKeySetValues
	case "keyDel":
		*t = MsgTKeyDel
	case "peerAdd":
		*t = MsgTPeerAdd
	case "peerDel":
		*t = MsgTPeerDel
	case "peerDump":
		*t = MsgTPeerDump
	case "subscribeKvStore":
		*t = MsgTSubscribeKvStore
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}
	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess
	MsgTError

	// Control-plane KvStore operations, per §6.
	MsgTKeyGetValues
	MsgTKeyDumpAll
	MsgTKeySetValues
	MsgTKeyDel
	MsgTPeerAdd
	MsgTPeerDel
	MsgTPeerDump
	MsgTSubscribeKvStore
)
