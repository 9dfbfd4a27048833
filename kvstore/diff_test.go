package kvstore

import (
	"reflect"
	"sort"
	"testing"
)

func TestDumpDifferenceThreeWay(t *testing.T) {
	v1 := &Value{Version: 1, OriginatorId: "A", Payload: []byte("v1")}
	v2my := &Value{Version: 2, OriginatorId: "A", Payload: []byte("v2my")}
	v2req := &Value{Version: 3, OriginatorId: "A", Payload: []byte("v2req")}
	v3 := &Value{Version: 1, OriginatorId: "A", Payload: []byte("v3")}

	myMap := map[string]*Value{"k1": v1, "k2": v2my}
	reqMap := map[string]*Value{"k2": v2req, "k3": v3}

	if got := CompareValues(v2my, v2req); got != CmpLess {
		t.Fatalf("sanity check: expected CompareValues(v2my, v2req) = CmpLess, got %d", got)
	}

	pub := dumpDifference(myMap, reqMap)

	if _, ok := pub.KeyVals["k1"]; !ok {
		t.Fatalf("expected k1 (local-only) in keyVals, got %+v", pub.KeyVals)
	}
	if _, ok := pub.KeyVals["k2"]; ok {
		t.Fatalf("expected k2 not in keyVals since the requester is strictly newer, got %+v", pub.KeyVals)
	}

	got := append([]string(nil), pub.TobeUpdatedKeys...)
	sort.Strings(got)
	want := []string{"k2", "k3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TobeUpdatedKeys = %v, want %v", got, want)
	}
}

func TestDumpDifferenceAmbiguousGoesBothWays(t *testing.T) {
	a := &Value{Version: 1, OriginatorId: "A"}
	b := &Value{Version: 1, OriginatorId: "A"}
	if CompareValues(a, b) != CmpUnknown {
		t.Fatal("sanity check: expected these two values to compare as CmpUnknown")
	}

	pub := dumpDifference(map[string]*Value{"k": a}, map[string]*Value{"k": b})
	if _, ok := pub.KeyVals["k"]; !ok {
		t.Fatal("expected an ambiguous key to be offered in keyVals")
	}
	if len(pub.TobeUpdatedKeys) != 1 || pub.TobeUpdatedKeys[0] != "k" {
		t.Fatalf("expected an ambiguous key to also be requested back, got %v", pub.TobeUpdatedKeys)
	}
}

func TestDumpDifferenceEmptyMaps(t *testing.T) {
	pub := dumpDifference(map[string]*Value{}, map[string]*Value{})
	if len(pub.KeyVals) != 0 || len(pub.TobeUpdatedKeys) != 0 {
		t.Fatalf("expected an empty diff for two empty maps, got %+v", pub)
	}
}

func TestDumpDifferenceFromHashes(t *testing.T) {
	myMap := map[string]*Value{
		"k1": {Version: 1, OriginatorId: "A", Payload: []byte("x")},
	}
	reqHashes := map[string]KeyHash{
		"k2": {Version: 1, OriginatorId: "B"},
	}
	pub := dumpDifferenceFromHashes(myMap, reqHashes)
	if _, ok := pub.KeyVals["k1"]; !ok {
		t.Fatalf("expected k1 (local-only) offered, got %+v", pub.KeyVals)
	}
	if len(pub.TobeUpdatedKeys) != 1 || pub.TobeUpdatedKeys[0] != "k2" {
		t.Fatalf("expected k2 requested back, got %v", pub.TobeUpdatedKeys)
	}
}
