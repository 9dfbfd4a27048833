package kvstore_test

import (
	"testing"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvtesting"
)

func TestStore(t *testing.T) {
	kvtesting.RunStoreTests(t, "PlainStore", func() *kvstore.Store {
		return kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, 300000, 1, kvtesting.NewTestLogger())
	})
}

func TestStoreDelKeys(t *testing.T) {
	s := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, 300000, 1, kvtesting.NewTestLogger())
	defer s.Close()

	if _, err := s.SetKeyVals(map[string]*kvstore.Value{
		"k": {Version: 1, OriginatorId: "node-a", Payload: []byte("x"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	if err := s.DelKeys([]string{"k"}); err != nil {
		t.Fatalf("DelKeys: %v", err)
	}

	got := s.GetKeyVals([]string{"k"})["k"]
	if got == nil {
		t.Fatal("expected a tombstone value after delete, got nothing")
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload after delete, got %q", got.Payload)
	}
	if got.Version != 2 {
		t.Fatalf("expected version bumped to 2, got %d", got.Version)
	}
}

func TestStorePeerRegistry(t *testing.T) {
	s := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, 300000, 1, kvtesting.NewTestLogger())
	defer s.Close()

	if err := s.AddPeer(kvstore.PeerSpec{PeerId: "p1", Address: "tcp://127.0.0.1:9000"}); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := s.AddPeer(kvstore.PeerSpec{PeerId: "p1", Address: "tcp://127.0.0.1:9001"}); err == nil {
		t.Fatal("expected duplicate peer id to be rejected")
	}

	dump := s.DumpPeers()
	if len(dump) != 1 || dump[0].PeerId != "p1" {
		t.Fatalf("expected exactly peer p1, got %+v", dump)
	}

	if err := s.DelPeer("p1"); err != nil {
		t.Fatalf("DelPeer: %v", err)
	}
	if err := s.DelPeer("p1"); err == nil {
		t.Fatal("expected deleting an unknown peer to error")
	}
}

func TestStoreDumpAllFiltersByEgressFilter(t *testing.T) {
	filter, err := kvstore.NewFilter([]string{"^allowed:"}, nil, kvstore.FilterOr)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	s := kvstore.NewStore(kvstore.DefaultArea, "node-a", filter, 300000, 1, kvtesting.NewTestLogger())
	defer s.Close()

	if _, err := s.SetKeyVals(map[string]*kvstore.Value{
		"allowed:k1": {Version: 1, OriginatorId: "node-a", Payload: []byte("x"), Ttl: kvstore.TTLInfinity},
		"blocked:k2": {Version: 1, OriginatorId: "node-a", Payload: []byte("y"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	dump := s.DumpAll(nil)
	if _, ok := dump["allowed:k1"]; !ok {
		t.Fatalf("expected allowed:k1 to be admitted, got %+v", dump)
	}
	if _, ok := dump["blocked:k2"]; ok {
		t.Fatalf("expected blocked:k2 to be filtered out, got %+v", dump)
	}
}
