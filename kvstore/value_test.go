package kvstore_test

import (
	"testing"

	"github.com/openr-go/openr/kvstore"
)

func TestValueValid(t *testing.T) {
	cases := []struct {
		name string
		v    kvstore.Value
		want bool
	}{
		{"ok finite ttl", kvstore.Value{Version: 1, Ttl: 1000}, true},
		{"ok infinite ttl", kvstore.Value{Version: 1, Ttl: kvstore.TTLInfinity}, true},
		{"bad version zero", kvstore.Value{Version: 0, Ttl: 1000}, false},
		{"bad version negative", kvstore.Value{Version: -1, Ttl: 1000}, false},
		{"bad ttl zero", kvstore.Value{Version: 1, Ttl: 0}, false},
		{"bad ttl negative not infinity", kvstore.Value{Version: 1, Ttl: -5}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Valid(); got != c.want {
				t.Errorf("Valid() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestValueEnsureHashIsDeterministic(t *testing.T) {
	a := &kvstore.Value{Version: 3, OriginatorId: "node-a", Payload: []byte("hello")}
	b := &kvstore.Value{Version: 3, OriginatorId: "node-a", Payload: []byte("hello")}
	a.EnsureHash()
	b.EnsureHash()
	if a.Hash != b.Hash {
		t.Fatalf("expected identical (version, originator, payload) to hash the same, got %d != %d", a.Hash, b.Hash)
	}

	c := &kvstore.Value{Version: 3, OriginatorId: "node-a", Payload: []byte("world")}
	c.EnsureHash()
	if a.Hash == c.Hash {
		t.Fatal("expected differing payload to change the hash")
	}
}

func TestValueEnsureHashIsIdempotent(t *testing.T) {
	v := &kvstore.Value{Version: 1, OriginatorId: "a", Payload: []byte("x")}
	v.EnsureHash()
	h := v.Hash
	v.Payload = []byte("mutated after hash was set")
	v.EnsureHash()
	if v.Hash != h {
		t.Fatal("expected EnsureHash to be a no-op once HashSet is true")
	}
}

func TestValueClone(t *testing.T) {
	v := &kvstore.Value{Version: 1, OriginatorId: "a", Payload: []byte("x")}
	cp := v.Clone()
	cp.Payload[0] = 'z'
	if v.Payload[0] == 'z' {
		t.Fatal("expected Clone to deep-copy Payload")
	}
}

func TestCompareValuesVersion(t *testing.T) {
	a := &kvstore.Value{Version: 1, OriginatorId: "n"}
	b := &kvstore.Value{Version: 2, OriginatorId: "n"}
	if got := kvstore.CompareValues(a, b); got != kvstore.CmpLess {
		t.Fatalf("CompareValues(older, newer) = %d, want CmpLess", got)
	}
	if got := kvstore.CompareValues(b, a); got != kvstore.CmpGreater {
		t.Fatalf("CompareValues(newer, older) = %d, want CmpGreater", got)
	}
}

func TestCompareValuesOriginatorTieBreak(t *testing.T) {
	a := &kvstore.Value{Version: 1, OriginatorId: "A"}
	b := &kvstore.Value{Version: 1, OriginatorId: "B"}
	if got := kvstore.CompareValues(a, b); got != kvstore.CmpLess {
		t.Fatalf("CompareValues(A, B) = %d, want CmpLess", got)
	}
}

func TestCompareValuesTtlVersionTieBreakOnEqualHash(t *testing.T) {
	a := &kvstore.Value{Version: 1, OriginatorId: "A", TtlVersion: 1}
	b := &kvstore.Value{Version: 1, OriginatorId: "A", TtlVersion: 2}
	a.Hash, a.HashSet = 42, true
	b.Hash, b.HashSet = 42, true
	if got := kvstore.CompareValues(a, b); got != kvstore.CmpLess {
		t.Fatalf("CompareValues with equal hash, lower ttlVersion = %d, want CmpLess", got)
	}
}

func TestCompareValuesPayloadFallback(t *testing.T) {
	a := &kvstore.Value{Version: 1, OriginatorId: "A", Payload: []byte("alpha")}
	b := &kvstore.Value{Version: 1, OriginatorId: "A", Payload: []byte("beta")}
	if got := kvstore.CompareValues(a, b); got != kvstore.CmpLess {
		t.Fatalf("CompareValues(alpha, beta) = %d, want CmpLess", got)
	}
}

func TestCompareValuesUnknownWhenNoDiscriminatorAvailable(t *testing.T) {
	a := &kvstore.Value{Version: 1, OriginatorId: "A"}
	b := &kvstore.Value{Version: 1, OriginatorId: "A"}
	if got := kvstore.CompareValues(a, b); got != kvstore.CmpUnknown {
		t.Fatalf("CompareValues with no hash and no payload = %d, want CmpUnknown", got)
	}
}
