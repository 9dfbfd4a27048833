package kvstore_test

import (
	"testing"

	"github.com/openr-go/openr/kvstore"
)

func TestFilterMatchAll(t *testing.T) {
	f := kvstore.MatchAllFilter()
	if !f.Match("anything", &kvstore.Value{OriginatorId: "x"}) {
		t.Fatal("match-all filter must match every key")
	}
	var nilFilter *kvstore.Filter
	if !nilFilter.Match("anything", nil) {
		t.Fatal("nil *Filter must behave as match-all")
	}
}

func TestFilterPrefixOnly(t *testing.T) {
	f, err := kvstore.NewFilter([]string{"^prefix:"}, nil, kvstore.FilterOr)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match("prefix:key1", nil) {
		t.Fatal("expected prefix:key1 to match")
	}
	if f.Match("other:key1", nil) {
		t.Fatal("expected other:key1 not to match")
	}
}

func TestFilterOriginatorOnly(t *testing.T) {
	f, err := kvstore.NewFilter(nil, []string{"node-a"}, kvstore.FilterOr)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match("any", &kvstore.Value{OriginatorId: "node-a"}) {
		t.Fatal("expected originator node-a to match")
	}
	if f.Match("any", &kvstore.Value{OriginatorId: "node-b"}) {
		t.Fatal("expected originator node-b not to match")
	}
}

func TestFilterAndRequiresBothDimensions(t *testing.T) {
	f, err := kvstore.NewFilter([]string{"^p:"}, []string{"node-a"}, kvstore.FilterAnd)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match("p:k", &kvstore.Value{OriginatorId: "node-a"}) {
		t.Fatal("expected both dimensions matching to pass AND")
	}
	if f.Match("p:k", &kvstore.Value{OriginatorId: "node-b"}) {
		t.Fatal("expected mismatched originator to fail AND")
	}
	if f.Match("q:k", &kvstore.Value{OriginatorId: "node-a"}) {
		t.Fatal("expected mismatched prefix to fail AND")
	}
}

func TestFilterOrEitherDimension(t *testing.T) {
	f, err := kvstore.NewFilter([]string{"^p:"}, []string{"node-a"}, kvstore.FilterOr)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match("p:k", &kvstore.Value{OriginatorId: "node-b"}) {
		t.Fatal("expected prefix match alone to pass OR")
	}
	if !f.Match("q:k", &kvstore.Value{OriginatorId: "node-a"}) {
		t.Fatal("expected originator match alone to pass OR")
	}
	if f.Match("q:k", &kvstore.Value{OriginatorId: "node-b"}) {
		t.Fatal("expected neither dimension matching to fail OR")
	}
}

func TestFilterInvalidRegexErrors(t *testing.T) {
	if _, err := kvstore.NewFilter([]string{"("}, nil, kvstore.FilterOr); err == nil {
		t.Fatal("expected invalid regex to error")
	}
}

func TestFilterWithPrefixUnion(t *testing.T) {
	f, err := kvstore.NewFilter([]string{"^a:"}, nil, kvstore.FilterOr)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	nf, err := f.WithPrefix("^b:")
	if err != nil {
		t.Fatalf("WithPrefix: %v", err)
	}
	if !nf.Match("a:k", nil) || !nf.Match("b:k", nil) {
		t.Fatal("expected the union filter to match both original and added prefixes")
	}
	if f.Match("b:k", nil) {
		t.Fatal("expected the original filter to remain unmodified")
	}
}

func TestFilterWithOriginatorUnion(t *testing.T) {
	f, err := kvstore.NewFilter(nil, []string{"node-a"}, kvstore.FilterOr)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	nf := f.WithOriginator("node-b")
	if !nf.Match("k", &kvstore.Value{OriginatorId: "node-b"}) {
		t.Fatal("expected the union filter to admit the newly added originator")
	}
	if f.Match("k", &kvstore.Value{OriginatorId: "node-b"}) {
		t.Fatal("expected the original filter to remain unmodified")
	}
}

func TestParseFilterOperator(t *testing.T) {
	cases := map[string]kvstore.FilterOperator{
		"":    kvstore.FilterOr,
		"or":  kvstore.FilterOr,
		"OR":  kvstore.FilterOr,
		"and": kvstore.FilterAnd,
		"AND": kvstore.FilterAnd,
	}
	for in, want := range cases {
		got, err := kvstore.ParseFilterOperator(in)
		if err != nil {
			t.Fatalf("ParseFilterOperator(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFilterOperator(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := kvstore.ParseFilterOperator("XOR"); err == nil {
		t.Fatal("expected an unrecognized operator to error")
	}
}
