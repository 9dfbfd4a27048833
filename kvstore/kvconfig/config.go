// Package kvconfig validates a node's KvStore configuration before any
// Store is constructed, following the teacher's fail-fast-at-startup
// philosophy in rpc/common/config.go and store.NewError's error shape.
package kvconfig

import (
	"fmt"
	"regexp"
	"time"

	"github.com/openr-go/openr/kvstore"
)

// MaxFloodBatchKeys bounds how many keys a single coalesced flood message
// may carry; the flood layer truncates a larger pending batch to this many
// keys rather than splitting it into further messages. Resolves the
// "unbounded flood batch" Open Question.
const MaxFloodBatchKeys = 4096

// FloodRateConfig configures the per-peer token bucket flood limiter.
type FloodRateConfig struct {
	FloodMsgPerSec    float64 `mapstructure:"flood_msg_per_sec"`
	FloodMsgBurstSize int     `mapstructure:"flood_msg_burst_size"`
}

// KvStoreConfig is the per-area tunable surface named in spec.md §6.
type KvStoreConfig struct {
	KeyTtlMs               int64           `mapstructure:"key_ttl_ms"`
	TtlDecrementMs         int64           `mapstructure:"ttl_decrement_ms"`
	FloodRate              FloodRateConfig `mapstructure:"flood_rate"`
	SetLeafNode            bool            `mapstructure:"set_leaf_node"`
	KeyPrefixFilters       []string        `mapstructure:"key_prefix_filters"`
	KeyOriginatorIdFilters []string        `mapstructure:"key_originator_id_filters"`
	FilterOperator         string          `mapstructure:"filter_operator"`
}

// DefaultKvStoreConfig returns the bracketed defaults from spec.md §6.
func DefaultKvStoreConfig() KvStoreConfig {
	return KvStoreConfig{
		KeyTtlMs:       300000,
		TtlDecrementMs: 1,
		FloodRate: FloodRateConfig{
			FloodMsgPerSec:    50,
			FloodMsgBurstSize: 100,
		},
		FilterOperator: "OR",
	}
}

// PeerSessionConfig configures the per-peer state machine's timing.
// Not enumerated in spec.md §6's config surface table but required by
// §4.7/§4.8's constraints on keep-alive, hold-time, backoff and the
// flood-pending coalescing window.
type PeerSessionConfig struct {
	KeepAliveInterval    time.Duration `mapstructure:"keep_alive_interval"`
	HoldTime             time.Duration `mapstructure:"hold_time"`
	InitialBackoff       time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff           time.Duration `mapstructure:"max_backoff"`
	ConnTimeout          time.Duration `mapstructure:"conn_timeout"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	LongPollHoldTime     time.Duration `mapstructure:"long_poll_hold_time"`
	FloodPendingInterval time.Duration `mapstructure:"flood_pending_interval"`
}

// DefaultPeerSessionConfig returns conservative defaults grounded on the
// retry/backoff constants in rpc/transport/base/client.go.
func DefaultPeerSessionConfig() PeerSessionConfig {
	return PeerSessionConfig{
		KeepAliveInterval:    3 * time.Second,
		HoldTime:             10 * time.Second,
		InitialBackoff:       500 * time.Millisecond,
		MaxBackoff:           30 * time.Second,
		ConnTimeout:          5 * time.Second,
		ReadTimeout:          5 * time.Second,
		LongPollHoldTime:     25 * time.Second,
		FloodPendingInterval: 200 * time.Millisecond,
	}
}

// PeerConfig is one statically configured peer to dial for an area.
type PeerConfig struct {
	PeerId  string `mapstructure:"peer_id"`
	Address string `mapstructure:"address"`
}

// AreaConfig is one area's full configuration.
type AreaConfig struct {
	Area          kvstore.Area      `mapstructure:"area"`
	KvStoreConfig KvStoreConfig     `mapstructure:"kvstore_config"`
	Session       PeerSessionConfig `mapstructure:"session"`
	Peers         []PeerConfig      `mapstructure:"peers"`
}

// NodeConfig is the top-level configuration for one node, spanning any
// number of areas.
type NodeConfig struct {
	NodeName string       `mapstructure:"node_name"`
	Areas    []AreaConfig `mapstructure:"areas"`
}

// Validate checks every constraint the core relies on (§4.8, trimmed to
// the constraints applicable to the KvStore-only surface: TTL bounds,
// flood rate, regex well-formedness, area uniqueness, session timing)
// and returns the first violation as an InvalidConfig error.
func Validate(cfg NodeConfig) error {
	if cfg.NodeName == "" {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "node_name", "must not be empty")
	}
	if len(cfg.Areas) == 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "areas", "must configure at least one area")
	}

	seen := make(map[kvstore.Area]struct{}, len(cfg.Areas))
	for _, ac := range cfg.Areas {
		if ac.Area == "" {
			return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "areas[].area", "area id must not be empty")
		}
		if _, dup := seen[ac.Area]; dup {
			return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "areas[].area", fmt.Sprintf("duplicate area id %q", ac.Area))
		}
		seen[ac.Area] = struct{}{}

		if err := validateKvStoreConfig(ac.Area, ac.KvStoreConfig); err != nil {
			return err
		}
		if err := validateSession(ac.Area, ac.Session); err != nil {
			return err
		}

		peerIds := make(map[string]struct{}, len(ac.Peers))
		for _, p := range ac.Peers {
			if p.PeerId == "" {
				return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "areas[].peers[].peer_id", "must not be empty")
			}
			if _, dup := peerIds[p.PeerId]; dup {
				return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "areas[].peers[].peer_id", fmt.Sprintf("duplicate peer id %q", p.PeerId))
			}
			peerIds[p.PeerId] = struct{}{}
			if p.Address == "" {
				return kvstore.NewFieldError(kvstore.RetCInvalidConfig, "areas[].peers[].address", "must not be empty")
			}
		}
	}
	return nil
}

func validateKvStoreConfig(area kvstore.Area, kc KvStoreConfig) error {
	field := func(name string) string { return fmt.Sprintf("areas[%s].kvstore_config.%s", area, name) }

	if kc.KeyTtlMs != kvstore.TTLInfinity && kc.KeyTtlMs <= 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("key_ttl_ms"), "must be > 0 or TTL_INFINITY")
	}
	if kc.TtlDecrementMs <= 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("ttl_decrement_ms"), "must be > 0")
	}
	if kc.FloodRate.FloodMsgPerSec <= 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("flood_rate.flood_msg_per_sec"), "must be > 0")
	}
	if kc.FloodRate.FloodMsgBurstSize <= 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("flood_rate.flood_msg_burst_size"), "must be > 0")
	}
	for _, p := range kc.KeyPrefixFilters {
		if _, err := regexp.Compile(p); err != nil {
			return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("key_prefix_filters"), fmt.Sprintf("invalid regex %q: %v", p, err))
		}
	}
	if _, err := kvstore.ParseFilterOperator(kc.FilterOperator); err != nil {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("filter_operator"), err.Error())
	}
	return nil
}

func validateSession(area kvstore.Area, sc PeerSessionConfig) error {
	field := func(name string) string { return fmt.Sprintf("areas[%s].session.%s", area, name) }

	if sc.KeepAliveInterval <= 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("keep_alive_interval"), "must be > 0")
	}
	if sc.HoldTime <= sc.KeepAliveInterval {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("hold_time"), "must exceed keep_alive_interval")
	}
	if sc.InitialBackoff < 0 || sc.MaxBackoff < 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("initial_backoff"), "backoff bounds must be >= 0")
	}
	if sc.InitialBackoff > sc.MaxBackoff {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("initial_backoff"), "must be <= max_backoff")
	}
	if sc.FloodPendingInterval <= 0 {
		return kvstore.NewFieldError(kvstore.RetCInvalidConfig, field("flood_pending_interval"), "must be > 0")
	}
	return nil
}

// BuildFilter compiles kc's ingress/egress Filter, applying the leaf-node
// auto-union documented in §4.8: when set_leaf_node is true, the
// effective prefix list gains the node-label and prefix-alloc markers
// and the effective originator set gains the local node name, mirroring
// the original implementation's getKvStoreFilters.
func BuildFilter(nodeName string, kc KvStoreConfig) (*kvstore.Filter, error) {
	op, err := kvstore.ParseFilterOperator(kc.FilterOperator)
	if err != nil {
		return nil, err
	}
	if len(kc.KeyPrefixFilters) == 0 && len(kc.KeyOriginatorIdFilters) == 0 && !kc.SetLeafNode {
		return kvstore.MatchAllFilter(), nil
	}

	f, err := kvstore.NewFilter(kc.KeyPrefixFilters, kc.KeyOriginatorIdFilters, op)
	if err != nil {
		return nil, err
	}
	if !kc.SetLeafNode {
		return f, nil
	}
	return effectiveLeafNodeFilter(f, nodeName)
}

// nodeLabelPrefix and prefixAllocPrefix are the two marker key prefixes
// the original implementation always admits for a leaf node, regardless
// of user-configured filters, so a leaf never drops its own control
// records.
const (
	nodeLabelPrefix   = "nodeLabel:"
	prefixAllocPrefix = "prefixAlloc:"
)

func effectiveLeafNodeFilter(f *kvstore.Filter, nodeName string) (*kvstore.Filter, error) {
	withNodeLabel, err := f.WithPrefix(nodeLabelPrefix)
	if err != nil {
		return nil, err
	}
	withAlloc, err := withNodeLabel.WithPrefix(prefixAllocPrefix)
	if err != nil {
		return nil, err
	}
	return withAlloc.WithOriginator(nodeName), nil
}
