package kvstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// FilterOperator combines the key-prefix and originator-id dimensions of
// a Filter.
type FilterOperator uint8

const (
	// FilterOr matches if either configured non-empty dimension matches.
	FilterOr FilterOperator = iota
	// FilterAnd matches only if every configured non-empty dimension matches.
	FilterAnd
)

func (op FilterOperator) String() string {
	if op == FilterAnd {
		return "AND"
	}
	return "OR"
}

// ParseFilterOperator parses "AND"/"OR" (case-insensitively), defaulting
// to FilterOr per the config surface's documented default.
func ParseFilterOperator(s string) (FilterOperator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "OR":
		return FilterOr, nil
	case "AND":
		return FilterAnd, nil
	default:
		return FilterOr, fmt.Errorf("invalid filter operator %q, want AND or OR", s)
	}
}

// Filter is a predicate over (key, Value) combining a key-prefix regex
// alternation and an originator-id set, joined by an operator.
//
// The prefix regexes are compiled once into a single alternation engine
// (rather than matched one-by-one) and the originator set is backed by
// a concurrent map so it can be read from the merge (ingress) and flood
// (egress) paths at the same time without external locking.
type Filter struct {
	op             FilterOperator
	prefixes       []string       // raw regexes, kept for WithPrefix recompilation
	prefixRegex    *regexp.Regexp // nil if no prefixes configured
	originatorId   *xsync.MapOf[string, struct{}]
	hasPrefixes    bool
	hasOriginators bool
}

// NewFilter compiles keyPrefixRegexes into a single alternation and
// indexes originatorIds into a concurrent set. It returns an error if
// any regex fails to compile (the config gate calls this eagerly so
// construction failures surface as InvalidConfig, never at match time).
func NewFilter(keyPrefixRegexes []string, originatorIds []string, op FilterOperator) (*Filter, error) {
	f := &Filter{
		op:           op,
		originatorId: xsync.NewMapOf[string, struct{}](),
	}

	if len(keyPrefixRegexes) > 0 {
		parts := make([]string, 0, len(keyPrefixRegexes))
		for _, p := range keyPrefixRegexes {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid key prefix regex %q: %w", p, err)
			}
			parts = append(parts, "(?:"+p+")")
		}
		re, err := regexp.Compile("^(?:" + strings.Join(parts, "|") + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid combined key prefix regex: %w", err)
		}
		f.prefixRegex = re
		f.prefixes = append([]string(nil), keyPrefixRegexes...)
		f.hasPrefixes = true
	}

	for _, id := range originatorIds {
		if id == "" {
			continue
		}
		f.originatorId.Store(id, struct{}{})
		f.hasOriginators = true
	}

	return f, nil
}

// MatchAllFilter is the filter that matches every key and value; used
// where no filter was configured.
func MatchAllFilter() *Filter {
	return &Filter{op: FilterOr, originatorId: xsync.NewMapOf[string, struct{}]()}
}

// Match reports whether key/value passes the filter. Empty prefix set
// AND empty originator set means match-all.
func (f *Filter) Match(key string, v *Value) bool {
	if f == nil {
		return true
	}
	if !f.hasPrefixes && !f.hasOriginators {
		return true
	}

	prefixMatch := f.hasPrefixes && f.prefixRegex.MatchString(key)
	originatorMatch := f.hasOriginators && v != nil && originatorInSet(f.originatorId, v.OriginatorId)

	if f.op == FilterAnd {
		if f.hasPrefixes && !prefixMatch {
			return false
		}
		if f.hasOriginators && !originatorMatch {
			return false
		}
		return true
	}

	// OR: match if any configured non-empty dimension matches.
	if f.hasPrefixes && prefixMatch {
		return true
	}
	if f.hasOriginators && originatorMatch {
		return true
	}
	return false
}

// WithOriginator returns a shallow copy of f with id added to the
// originator set, used by leaf-node effective-filter construction which
// must union in the local node name without mutating a shared Filter.
func (f *Filter) WithOriginator(id string) *Filter {
	cp := &Filter{
		op:           f.op,
		prefixes:     f.prefixes,
		prefixRegex:  f.prefixRegex,
		hasPrefixes:  f.hasPrefixes,
		originatorId: xsync.NewMapOf[string, struct{}](),
	}
	f.originatorId.Range(func(k string, _ struct{}) bool {
		cp.originatorId.Store(k, struct{}{})
		return true
	})
	if id != "" {
		cp.originatorId.Store(id, struct{}{})
	}
	cp.hasOriginators = f.hasOriginators || id != ""
	return cp
}

// WithPrefix returns a shallow copy of f with prefix added to the
// alternation, recompiling it. Used by leaf-node effective-filter
// construction to union in the node-label and prefix-alloc markers.
func (f *Filter) WithPrefix(prefix string) (*Filter, error) {
	prefixes := append([]string{prefix}, f.prefixes...)
	nf, err := NewFilter(prefixes, nil, f.op)
	if err != nil {
		return nil, err
	}
	nf.originatorId = f.originatorId
	nf.hasOriginators = f.hasOriginators
	return nf, nil
}

func originatorInSet(set *xsync.MapOf[string, struct{}], id string) bool {
	_, ok := set.Load(id)
	return ok
}
