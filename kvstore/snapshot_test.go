package kvstore_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvtesting"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer src.Close()

	if _, err := src.SetKeyVals(map[string]*kvstore.Value{
		"a": {Version: 1, OriginatorId: "node-a", Payload: []byte("hello"), Ttl: kvstore.TTLInfinity},
		"b": {Version: 3, OriginatorId: "node-b", Payload: []byte{}, Ttl: 5000},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	var buf bytes.Buffer
	if err := src.SaveSnapshot(&buf); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	dst := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer dst.Close()

	if err := dst.LoadSnapshot(&buf); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	got := dst.GetKeyVals([]string{"a", "b"})
	if a := got["a"]; a == nil || string(a.Payload) != "hello" || a.Version != 1 {
		t.Fatalf("expected key a to round-trip, got %+v", a)
	}
	if b := got["b"]; b == nil || b.Version != 3 || b.OriginatorId != "node-b" {
		t.Fatalf("expected key b to round-trip, got %+v", b)
	}
}

func TestSnapshotFileMissingIsNotError(t *testing.T) {
	s := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer s.Close()

	path := filepath.Join(t.TempDir(), "does-not-exist.snap")
	if err := s.LoadSnapshotFromFile(path); err != nil {
		t.Fatalf("expected missing snapshot file to be a no-op, got %v", err)
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	src := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer src.Close()

	if _, err := src.SetKeyVals(map[string]*kvstore.Value{
		"k": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := src.SaveSnapshotToFile(path); err != nil {
		t.Fatalf("SaveSnapshotToFile: %v", err)
	}

	dst := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer dst.Close()

	if err := dst.LoadSnapshotFromFile(path); err != nil {
		t.Fatalf("LoadSnapshotFromFile: %v", err)
	}

	got := dst.GetKeyVals([]string{"k"})["k"]
	if got == nil || string(got.Payload) != "v" {
		t.Fatalf("expected key k to round-trip through a file, got %+v", got)
	}
}
