package kvconfig_test

import (
	"testing"
	"time"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvconfig"
)

func validNodeConfig() kvconfig.NodeConfig {
	return kvconfig.NodeConfig{
		NodeName: "node-a",
		Areas: []kvconfig.AreaConfig{
			{
				Area:          "0",
				KvStoreConfig: kvconfig.DefaultKvStoreConfig(),
				Session:       kvconfig.DefaultPeerSessionConfig(),
				Peers: []kvconfig.PeerConfig{
					{PeerId: "node-b", Address: "tcp://127.0.0.1:9000"},
				},
			},
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := kvconfig.Validate(validNodeConfig()); err != nil {
		t.Fatalf("expected the default config to validate, got %v", err)
	}
}

func TestValidateRejectsEmptyNodeName(t *testing.T) {
	cfg := validNodeConfig()
	cfg.NodeName = ""
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsNoAreas(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas = nil
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsDuplicateAreaIds(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas = append(cfg.Areas, cfg.Areas[0])
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsBadTtl(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].KvStoreConfig.KeyTtlMs = 0
	assertInvalidConfig(t, cfg)
}

func TestValidateAcceptsTtlInfinity(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].KvStoreConfig.KeyTtlMs = kvstore.TTLInfinity
	if err := kvconfig.Validate(cfg); err != nil {
		t.Fatalf("expected TTL_INFINITY key_ttl_ms to validate, got %v", err)
	}
}

func TestValidateRejectsNonPositiveFloodRate(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].KvStoreConfig.FloodRate.FloodMsgPerSec = 0
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsBadPrefixRegex(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].KvStoreConfig.KeyPrefixFilters = []string{"("}
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsHoldTimeNotExceedingKeepAlive(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].Session.KeepAliveInterval = 5 * time.Second
	cfg.Areas[0].Session.HoldTime = 5 * time.Second
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsInitialBackoffGreaterThanMax(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].Session.InitialBackoff = time.Minute
	cfg.Areas[0].Session.MaxBackoff = time.Second
	assertInvalidConfig(t, cfg)
}

func TestValidateRejectsDuplicatePeerIds(t *testing.T) {
	cfg := validNodeConfig()
	cfg.Areas[0].Peers = append(cfg.Areas[0].Peers, kvconfig.PeerConfig{PeerId: "node-b", Address: "tcp://127.0.0.1:9001"})
	assertInvalidConfig(t, cfg)
}

func assertInvalidConfig(t *testing.T, cfg kvconfig.NodeConfig) {
	t.Helper()
	err := kvconfig.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if kvstore.CodeOf(err) != kvstore.RetCInvalidConfig {
		t.Fatalf("expected RetCInvalidConfig, got %v", kvstore.CodeOf(err))
	}
}

func TestBuildFilterLeafNodeUnionsMarkersAndNodeName(t *testing.T) {
	kc := kvconfig.DefaultKvStoreConfig()
	kc.SetLeafNode = true
	kc.KeyPrefixFilters = []string{"^app:"}

	f, err := kvconfig.BuildFilter("node-a", kc)
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}

	if !f.Match("app:k", nil) {
		t.Fatal("expected the configured prefix to still match")
	}
	if !f.Match("nodeLabel:node-a", nil) {
		t.Fatal("expected the leaf-node marker prefix nodeLabel: to be auto-admitted")
	}
	if !f.Match("prefixAlloc:node-a", nil) {
		t.Fatal("expected the leaf-node marker prefix prefixAlloc: to be auto-admitted")
	}
	if !f.Match("anything", &kvstore.Value{OriginatorId: "node-a"}) {
		t.Fatal("expected the local node name to be auto-admitted as an originator")
	}
}

func TestBuildFilterMatchAllWhenUnconfigured(t *testing.T) {
	f, err := kvconfig.BuildFilter("node-a", kvconfig.DefaultKvStoreConfig())
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if !f.Match("anything", nil) {
		t.Fatal("expected an unconfigured filter to match everything")
	}
}
