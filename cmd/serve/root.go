package serve

import (
	"fmt"
	"strings"
	"time"

	cmdUtil "github.com/openr-go/openr/cmd/util"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/server"
	"github.com/openr-go/openr/rpc/transport"
	"github.com/openr-go/openr/rpc/transport/http"
	"github.com/openr-go/openr/rpc/transport/tcp"
	"github.com/openr-go/openr/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}

	// ServeCmd starts an openr node: it builds one kvstore.Store per
	// configured area and serves both the control-plane RPC surface and
	// the flood/gossip plane until interrupted.
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start an openr node",
		Long:    `Start an openr node with the specified configuration. Node name, areas, peers and kvstore tuning are read from --config (a YAML file); listener and transport settings can be set via flags or OPENR_<flag> environment variables.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	key := "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path to a YAML file describing node_name and areas (see kvconfig.NodeConfig)"))

	key = "node-name"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Overrides node_name from --config"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the control-plane API will listen (e.g. 0.0.0.0:8080, /tmp/openr.sock)"))

	key = "flood-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which the flood/gossip plane will listen. Empty disables peer flooding entirely"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Request handling timeout in seconds"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("Log level (debug, info, warn, error)"))

	key = "snapshot-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory to persist per-area snapshots in. Empty disables snapshotting; a snapshot is loaded from here before an area starts peering"))

	key = "snapshot-interval"
	ServeCmd.PersistentFlags().Duration(key, time.Minute, cmdUtil.WrapString("How often a running node rewrites its snapshots to --snapshot-dir"))
}

// processConfig reads the node's area topology from --config and the
// listener/transport knobs from flags and environment variables.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var nodeConfig kvconfig.NodeConfig
	if err := viper.Unmarshal(&nodeConfig); err != nil {
		return fmt.Errorf("failed to parse node config: %w", err)
	}

	if name := viper.GetString("node-name"); name != "" {
		nodeConfig.NodeName = name
	}
	for i := range nodeConfig.Areas {
		fillAreaDefaults(&nodeConfig.Areas[i])
	}

	serveCmdConfig.NodeName = nodeConfig.NodeName
	serveCmdConfig.Areas = nodeConfig.Areas
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.FloodEndpoint = viper.GetString("flood-endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.SnapshotDir = viper.GetString("snapshot-dir")
	serveCmdConfig.SnapshotInterval = viper.GetDuration("snapshot-interval")

	return nil
}

// fillAreaDefaults applies kvconfig's documented defaults to any area
// whose config file entry left the KvStore or session tuning zero-valued,
// mirroring the original implementation's fall back to sane defaults
// when a field is omitted.
func fillAreaDefaults(ac *kvconfig.AreaConfig) {
	def := kvconfig.DefaultKvStoreConfig()
	if ac.KvStoreConfig.KeyTtlMs == 0 {
		ac.KvStoreConfig.KeyTtlMs = def.KeyTtlMs
	}
	if ac.KvStoreConfig.TtlDecrementMs == 0 {
		ac.KvStoreConfig.TtlDecrementMs = def.TtlDecrementMs
	}
	if ac.KvStoreConfig.FloodRate.FloodMsgPerSec == 0 {
		ac.KvStoreConfig.FloodRate.FloodMsgPerSec = def.FloodRate.FloodMsgPerSec
	}
	if ac.KvStoreConfig.FloodRate.FloodMsgBurstSize == 0 {
		ac.KvStoreConfig.FloodRate.FloodMsgBurstSize = def.FloodRate.FloodMsgBurstSize
	}
	if ac.KvStoreConfig.FilterOperator == "" {
		ac.KvStoreConfig.FilterOperator = def.FilterOperator
	}

	defSession := kvconfig.DefaultPeerSessionConfig()
	if ac.Session.KeepAliveInterval == 0 {
		ac.Session.KeepAliveInterval = defSession.KeepAliveInterval
	}
	if ac.Session.HoldTime == 0 {
		ac.Session.HoldTime = defSession.HoldTime
	}
	if ac.Session.InitialBackoff == 0 {
		ac.Session.InitialBackoff = defSession.InitialBackoff
	}
	if ac.Session.MaxBackoff == 0 {
		ac.Session.MaxBackoff = defSession.MaxBackoff
	}
	if ac.Session.ConnTimeout == 0 {
		ac.Session.ConnTimeout = defSession.ConnTimeout
	}
	if ac.Session.ReadTimeout == 0 {
		ac.Session.ReadTimeout = defSession.ReadTimeout
	}
	if ac.Session.LongPollHoldTime == 0 {
		ac.Session.LongPollHoldTime = defSession.LongPollHoldTime
	}
	if ac.Session.FloodPendingInterval == 0 {
		ac.Session.FloodPendingInterval = defSession.FloodPendingInterval
	}
}

// run starts the openr node
func run(_ *cobra.Command, _ []string) error {
	var s serializer.IRPCSerializer[common.Message]
	switch viper.GetString("serializer") {
	case "json", "":
		s = serializer.NewJSONSerializer[common.Message]()
	case "gob":
		s = serializer.NewGOBSerializer[common.Message]()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	floodSerializer := serializer.NewJSONSerializer[common.FloodMessage]()
	if viper.GetString("serializer") == "gob" {
		floodSerializer = serializer.NewGOBSerializer[common.FloodMessage]()
	}

	t, newFloodClient, floodTransport, err := buildTransports()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		floodTransport,
		floodSerializer,
		newFloodClient,
	)

	return serv.Serve()
}

// buildTransports constructs the control-plane server transport and,
// when a flood endpoint is configured, a matching flood-plane server
// transport plus the client transport constructor flood.Session dials
// peers with.
func buildTransports() (transport.IRPCServerTransport, func() transport.IRPCClientTransport, transport.IRPCServerTransport, error) {
	kind := viper.GetString("transport")
	if kind == "" {
		kind = "http"
	}

	var t transport.IRPCServerTransport
	var floodTransport transport.IRPCServerTransport
	var newFloodClient func() transport.IRPCClientTransport

	switch kind {
	case "http":
		t = http.NewHttpServerTransport()
		if serveCmdConfig.FloodEndpoint != "" {
			floodTransport = http.NewHttpServerTransport()
			newFloodClient = func() transport.IRPCClientTransport { return http.NewHttpClientTransport() }
		}
	case "tcp":
		t = tcp.NewTCPServerTransport()
		if serveCmdConfig.FloodEndpoint != "" {
			floodTransport = tcp.NewTCPServerTransport()
			newFloodClient = func() transport.IRPCClientTransport { return tcp.NewTCPClientTransport() }
		}
	case "unix":
		t = unix.NewUnixServerTransport(64 * 1024)
		if serveCmdConfig.FloodEndpoint != "" {
			floodTransport = unix.NewUnixServerTransport(64 * 1024)
			newFloodClient = func() transport.IRPCClientTransport { return unix.NewUnixClientTransport() }
		}
	default:
		return nil, nil, nil, fmt.Errorf("invalid transport %s", kind)
	}

	return t, newFloodClient, floodTransport, nil
}

// initConfig reads serveCmdConfig file and ENV variables if set.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("openr")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
