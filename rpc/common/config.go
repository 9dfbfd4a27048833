package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/openr-go/openr/kvstore/kvconfig"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds every parameter needed to bring up a node's RPC
// surface: the domain config (node name, areas, KvStore tuning, peers)
// plus the transport/listener knobs. Deliberately flat, unlike an
// earlier revision that nested transport fields under a Transport
// substruct inconsistently across tcp/http/unix listeners.
type ServerConfig struct {
	// Domain configuration, validated by kvconfig.Validate before a
	// server is ever constructed.
	NodeName string
	Areas    []kvconfig.AreaConfig

	// Listener address, interpreted per transport (host:port for tcp,
	// URL for http, socket path for unix).
	Endpoint string

	// FloodEndpoint is the listener address for the flood/gossip plane,
	// kept on a separate listener from the control-plane Endpoint since a
	// transport instance only routes one message type. Empty disables the
	// flood listener (single-node / no peers configured).
	FloodEndpoint string

	// SnapshotDir, if non-empty, is the directory holding one snapshot
	// file per area (named <area>.snapshot). A snapshot is loaded from
	// this directory before an area's Store starts peering and is
	// persisted back on a fixed interval and on shutdown. Empty disables
	// persistence entirely: a restart starts every area empty.
	SnapshotDir string

	// SnapshotInterval controls how often a running Store's snapshot is
	// rewritten to disk. Ignored when SnapshotDir is empty.
	SnapshotInterval time.Duration

	// TimeoutSecond bounds request handling on the server side.
	TimeoutSecond int64

	// TCP tuning. Only the tcp serverConnector's UpgradeConnection reads
	// these fields, and the base server transport does not call it, so
	// accepted connections keep the operating system's socket defaults.
	TCPNoDelay      bool
	WriteBufferSize int
	ReadBufferSize  int
	TCPKeepAliveSec int
	TCPLingerSec    int

	// Logging configuration.
	LogLevel string
}

// String returns a formatted string representation of the configuration.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Node")
	addField("Node Name", c.NodeName)
	addField("Areas", strconv.Itoa(len(c.Areas)))

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Flood Endpoint", c.FloodEndpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Snapshot Dir", c.SnapshotDir)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	for _, area := range c.Areas {
		addSection(fmt.Sprintf("Area %s", area.Area))
		addField("Key TTL (ms)", strconv.FormatInt(area.KvStoreConfig.KeyTtlMs, 10))
		addField("TTL Decrement (ms)", strconv.FormatInt(area.KvStoreConfig.TtlDecrementMs, 10))
		addField("Leaf Node", fmt.Sprintf("%t", area.KvStoreConfig.SetLeafNode))
		addField("Peers", strconv.Itoa(len(area.Peers)))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
