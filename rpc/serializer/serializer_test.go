package serializer_test

import (
	"reflect"
	"testing"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
)

func testMessages() []common.Message {
	return []common.Message{
		{MsgType: common.MsgTSuccess},
		{
			MsgType: common.MsgTKeySetValues,
			Area:    "0",
			KeyVals: map[string]*kvstore.Value{
				"k": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
			},
		},
		{
			MsgType: common.MsgTKeyGetValues,
			Area:    "0",
			Keys:    []string{"k1", "k2"},
		},
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},
		{
			MsgType: common.MsgTPeerAdd,
			Area:    "0",
			PeerSpec: &kvstore.PeerSpec{
				PeerId:  "node-b",
				Address: "tcp://127.0.0.1:9000",
			},
		},
	}
}

func TestJSONSerializerRoundTrip(t *testing.T) {
	ser := serializer.NewJSONSerializer[common.Message]()
	for i, msg := range testMessages() {
		data, err := ser.Serialize(msg)
		if err != nil {
			t.Fatalf("message %d: Serialize: %v", i, err)
		}
		var got common.Message
		if err := ser.Deserialize(data, &got); err != nil {
			t.Fatalf("message %d: Deserialize: %v", i, err)
		}
		if !reflect.DeepEqual(msg, got) {
			t.Fatalf("message %d round trip mismatch:\noriginal: %+v\nresult:   %+v", i, msg, got)
		}
	}
}

func TestGOBSerializerRoundTrip(t *testing.T) {
	ser := serializer.NewGOBSerializer[common.Message]()
	for i, msg := range testMessages() {
		data, err := ser.Serialize(msg)
		if err != nil {
			t.Fatalf("message %d: Serialize: %v", i, err)
		}
		var got common.Message
		if err := ser.Deserialize(data, &got); err != nil {
			t.Fatalf("message %d: Deserialize: %v", i, err)
		}
		if !reflect.DeepEqual(msg, got) {
			t.Fatalf("message %d round trip mismatch:\noriginal: %+v\nresult:   %+v", i, msg, got)
		}
	}
}

func TestFloodMessageRoundTrip(t *testing.T) {
	msg := common.FloodMessage{
		Type: common.FloodMsgFullSyncReq,
		Area: "0",
		KeyHashes: map[string]common.KeyHashWire{
			"k": {Version: 1, OriginatorId: "node-a", Hash: 42, HashSet: true},
		},
	}
	for name, ser := range map[string]serializer.IRPCSerializer[common.FloodMessage]{
		"JSON": serializer.NewJSONSerializer[common.FloodMessage](),
		"GOB":  serializer.NewGOBSerializer[common.FloodMessage](),
	} {
		t.Run(name, func(t *testing.T) {
			data, err := ser.Serialize(msg)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			var got common.FloodMessage
			if err := ser.Deserialize(data, &got); err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(msg, got) {
				t.Fatalf("round trip mismatch:\noriginal: %+v\nresult:   %+v", msg, got)
			}
		})
	}
}
