// Package kvtesting provides a reusable scenario suite that exercises a
// kvstore.Store end to end, in the same spirit as the teacher's
// lib/db/testing package: one RunXXXTests entry point per subject,
// grouping subtests with t.Run so a caller can plug in different
// construction parameters and get the whole suite for free.
package kvtesting

import (
	"bytes"
	"testing"
	"time"

	"github.com/openr-go/openr/kvstore"
	"github.com/sirupsen/logrus"
)

// StoreFactory builds a fresh, empty Store for one subtest.
type StoreFactory func() *kvstore.Store

// NewTestLogger returns a logrus entry that discards output, used by
// tests that need to satisfy Store's logger parameter without spamming
// test output.
func NewTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(nowhere{})
	return logrus.NewEntry(l)
}

type nowhere struct{}

func (nowhere) Write(p []byte) (int, error) { return len(p), nil }

// RunStoreTests runs the full end-to-end scenario suite against a Store
// produced by factory.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("VersionMonotonicity", func(t *testing.T) { testVersionMonotonicity(t, factory()) })
		t.Run("OriginatorTieBreak", func(t *testing.T) { testOriginatorTieBreak(t, factory()) })
		t.Run("TtlOnlyRefresh", func(t *testing.T) { testTtlOnlyRefresh(t, factory()) })
		t.Run("PayloadTieBreakAfterRestart", func(t *testing.T) { testPayloadTieBreak(t, factory()) })
		t.Run("SubscriptionSeesAcceptedBatch", func(t *testing.T) { testSubscription(t, factory()) })
		t.Run("SnapshotRoundTrip", func(t *testing.T) { testSnapshotRoundTrip(t, factory()) })
	})
}

func mustAccept(t *testing.T, s *kvstore.Store, key string, v *kvstore.Value) []string {
	t.Helper()
	accepted, err := s.SetKeyVals(map[string]*kvstore.Value{key: v}, "")
	if err != nil {
		t.Fatalf("SetKeyVals(%q): unexpected error: %v", key, err)
	}
	return accepted
}

func testVersionMonotonicity(t *testing.T, s *kvstore.Store) {
	mustAccept(t, s, "k", &kvstore.Value{Version: 1, OriginatorId: "A", Payload: []byte("x"), Ttl: kvstore.TTLInfinity})
	accepted := mustAccept(t, s, "k", &kvstore.Value{Version: 0, OriginatorId: "A", Payload: []byte("y"), Ttl: kvstore.TTLInfinity})
	if len(accepted) != 0 {
		t.Fatalf("expected version 0 to be rejected, got accepted=%v", accepted)
	}
	got := s.GetKeyVals([]string{"k"})["k"]
	if got == nil || string(got.Payload) != "x" {
		t.Fatalf("expected stored payload to remain %q, got %+v", "x", got)
	}
}

func testOriginatorTieBreak(t *testing.T, s *kvstore.Store) {
	mustAccept(t, s, "k", &kvstore.Value{Version: 5, OriginatorId: "A", Payload: []byte("a"), Ttl: kvstore.TTLInfinity})
	accepted := mustAccept(t, s, "k", &kvstore.Value{Version: 5, OriginatorId: "B", Payload: []byte("b"), Ttl: kvstore.TTLInfinity})
	if len(accepted) != 1 {
		t.Fatalf("expected the higher-originator value to be accepted, got %v", accepted)
	}
	got := s.GetKeyVals([]string{"k"})["k"]
	if got.OriginatorId != "B" || string(got.Payload) != "b" {
		t.Fatalf("expected originator B / payload b, got %+v", got)
	}
}

func testTtlOnlyRefresh(t *testing.T, s *kvstore.Store) {
	mustAccept(t, s, "k", &kvstore.Value{Version: 7, OriginatorId: "A", Payload: []byte("p"), Ttl: 500, TtlVersion: 3})
	accepted := mustAccept(t, s, "k", &kvstore.Value{Version: 7, OriginatorId: "A", Ttl: 2000, TtlVersion: 4})
	if len(accepted) != 1 {
		t.Fatalf("expected TTL-only refresh to be accepted, got %v", accepted)
	}
	got := s.GetKeyVals([]string{"k"})["k"]
	if got.Ttl != 2000 || got.TtlVersion != 4 || string(got.Payload) != "p" {
		t.Fatalf("expected ttl=2000 ttlVersion=4 payload unchanged, got %+v", got)
	}
}

func testPayloadTieBreak(t *testing.T, s *kvstore.Store) {
	mustAccept(t, s, "k", &kvstore.Value{Version: 3, OriginatorId: "A", Payload: []byte("alpha"), Ttl: kvstore.TTLInfinity})
	accepted := mustAccept(t, s, "k", &kvstore.Value{Version: 3, OriginatorId: "A", Payload: []byte("beta"), Ttl: kvstore.TTLInfinity})
	if len(accepted) != 1 {
		t.Fatalf("expected the lexicographically greater payload to be accepted, got %v", accepted)
	}
	got := s.GetKeyVals([]string{"k"})["k"]
	if string(got.Payload) != "beta" {
		t.Fatalf("expected payload beta, got %+v", got)
	}
}

func testSubscription(t *testing.T, s *kvstore.Store) {
	stream, cancel := s.Subscribe(nil)
	defer cancel()

	mustAccept(t, s, "k1", &kvstore.Value{Version: 1, OriginatorId: "A", Payload: []byte("x"), Ttl: kvstore.TTLInfinity})

	select {
	case pub := <-stream:
		if _, ok := pub.KeyVals["k1"]; !ok {
			t.Fatalf("expected publication to contain k1, got %+v", pub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publication")
	}
}

func testSnapshotRoundTrip(t *testing.T, s *kvstore.Store) {
	mustAccept(t, s, "k1", &kvstore.Value{Version: 1, OriginatorId: "A", Payload: []byte("x"), Ttl: kvstore.TTLInfinity})
	mustAccept(t, s, "k2", &kvstore.Value{Version: 2, OriginatorId: "B", Payload: []byte("y"), Ttl: kvstore.TTLInfinity})

	var buf bytes.Buffer
	if err := s.SaveSnapshot(&buf); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored := newBlankStore()
	defer restored.Close()
	if err := restored.LoadSnapshot(&buf); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	got := restored.GetKeyVals([]string{"k1", "k2"})
	if len(got) != 2 || string(got["k1"].Payload) != "x" || string(got["k2"].Payload) != "y" {
		t.Fatalf("expected both keys to round-trip, got %+v", got)
	}
}

func newBlankStore() *kvstore.Store {
	return kvstore.NewStore(kvstore.DefaultArea, "restore-target", nil, 300000, 1, NewTestLogger())
}
