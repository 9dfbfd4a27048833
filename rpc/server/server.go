package server

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/openr-go/openr/flood"
	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// defaultSnapshotInterval is used when a ServerConfig sets SnapshotDir but
// leaves SnapshotInterval zero.
const defaultSnapshotInterval = time.Minute

var Logger = common.CreateLogger("rpc")

// areaShard bundles one area's Store together with the adapter that
// dispatches control-plane requests against it. Shards are keyed by a
// hash of the area id so the transport layer's shardId routing (built for
// dragonboat's raft groups) still applies unchanged.
type areaShard struct {
	Store        *kvstore.Store
	Adapter      IRPCServerAdapter
	Flood        *flood.Manager
	SnapshotPath string
}

// NewRPCServer creates a new RPC server. floodTransport and floodSerializer
// carry the gossip plane on its own listener, since a transport instance
// only routes a single message shape; newFloodClient selects the client
// transport kind flood.Session dials peers with, matching floodTransport's
// kind. Passing a nil floodTransport disables the flood plane entirely
// (useful for a single-node deployment with no peers).
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer[common.Message](),
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer[common.FloodMessage](),
//		func() transport.IRPCClientTransport { return http.NewHttpClientTransport() },
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer[common.Message],
	floodTransport transport.IRPCServerTransport,
	floodSerializer serializer.IRPCSerializer[common.FloodMessage],
	newFloodClient func() transport.IRPCClientTransport,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("created RPC server")
	Logger.Infof(config.String())

	return rpcServer{
		config:          config,
		transport:       transport,
		serializer:      serializer,
		floodTransport:  floodTransport,
		floodSerializer: floodSerializer,
		newFloodClient:  newFloodClient,
		shards:          xsync.NewMapOf[uint64, areaShard](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer[common.Message]

	floodTransport  transport.IRPCServerTransport
	floodSerializer serializer.IRPCSerializer[common.FloodMessage]
	newFloodClient  func() transport.IRPCClientTransport

	shards *xsync.MapOf[uint64, areaShard]
	cancel context.CancelFunc
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		shard, ok := s.shards.Load(shardId)

		if !ok {
			respMsg = common.Message{MsgType: common.MsgTError, Err: "area shard not found"}
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.Message{MsgType: common.MsgTError, Err: fmt.Sprintf("failed to deserialize request: %s", err)}
		} else {
			respMsg = *shard.Adapter.Handle(&msg, shard.Store)
		}

		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			respMsg = common.Message{MsgType: common.MsgTError, Err: fmt.Sprintf("failed to serialize response: %s", err)}
			val, _ = s.serializer.Serialize(respMsg)
		}
		return val
	})
}

// registerFloodHandler wires the second listener that carries
// FloodMessage envelopes, routing each to the area's flood.Manager. A
// peer that hasn't yet been dialed back by us is still answered directly
// against the Store by Manager.Dispatch.
func (s *rpcServer) registerFloodHandler() {
	s.floodTransport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.FloodMessage
		var respMsg *common.FloodMessage

		shard, ok := s.shards.Load(shardId)
		if !ok {
			respMsg = &common.FloodMessage{Type: common.FloodMsgUnknown}
		} else if err := s.floodSerializer.Deserialize(req, &msg); err != nil {
			Logger.WithField("err", err).Warnf("failed to deserialize flood message")
			respMsg = &common.FloodMessage{Type: common.FloodMsgUnknown}
		} else if shard.Flood == nil {
			respMsg = &common.FloodMessage{Type: common.FloodMsgUnknown}
		} else {
			respMsg = shard.Flood.Dispatch(msg.SenderId, &msg)
			if respMsg == nil {
				respMsg = &common.FloodMessage{Type: common.FloodMsgUnknown}
			}
		}

		val, err := s.floodSerializer.Serialize(*respMsg)
		if err != nil {
			Logger.WithField("err", err).Warnf("failed to serialize flood response")
			return nil
		}
		return val
	})
}

func (s *rpcServer) init() error {
	common.InitLoggers(s.config)

	nodeConfig := kvconfig.NodeConfig{NodeName: s.config.NodeName, Areas: s.config.Areas}
	if err := kvconfig.Validate(nodeConfig); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, areaConfig := range s.config.Areas {
		filter, err := kvconfig.BuildFilter(s.config.NodeName, areaConfig.KvStoreConfig)
		if err != nil {
			return fmt.Errorf("area %s: failed to build filter: %w", areaConfig.Area, err)
		}

		store := kvstore.NewStore(
			areaConfig.Area,
			s.config.NodeName,
			filter,
			areaConfig.KvStoreConfig.KeyTtlMs,
			areaConfig.KvStoreConfig.TtlDecrementMs,
			common.CreateLogger("kvstore"),
		)

		shard := areaShard{Store: store}

		if s.config.SnapshotDir != "" {
			shard.SnapshotPath = filepath.Join(s.config.SnapshotDir, string(areaConfig.Area)+".snapshot")
			if err := store.LoadSnapshotFromFile(shard.SnapshotPath); err != nil {
				return fmt.Errorf("area %s: failed to load snapshot: %w", areaConfig.Area, err)
			}
			Logger.Infof("loaded snapshot for area %s from %s", areaConfig.Area, shard.SnapshotPath)
		}

		if s.floodTransport != nil && s.newFloodClient != nil {
			manager := flood.NewManager(s.config.NodeName, store, areaConfig, s.newFloodClient, s.floodSerializer, common.CreateLogger("flood"))
			manager.Start(ctx)
			shard.Flood = manager
		}

		shard.Adapter = NewKvStoreServerAdapter(shard.Flood, areaConfig.Session.LongPollHoldTime)
		s.shards.Store(common.ShardIdForArea(areaConfig.Area), shard)

		Logger.Infof("created kvstore for area %s", areaConfig.Area)
	}

	if s.config.SnapshotDir != "" {
		interval := s.config.SnapshotInterval
		if interval <= 0 {
			interval = defaultSnapshotInterval
		}
		go s.runSnapshotLoop(ctx, interval)
	}

	Logger.Infof("openr kvstore setup completed successfully")

	s.registerTransportHandler()
	if s.floodTransport != nil {
		s.registerFloodHandler()
	}

	return nil
}

// runSnapshotLoop periodically rewrites every area's snapshot file to
// disk until ctx is cancelled, so a crash loses at most one interval's
// worth of updates rather than the whole store.
func (s *rpcServer) runSnapshotLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.saveSnapshots()
		}
	}
}

// saveSnapshots writes every area with a configured SnapshotPath to disk,
// logging but not failing on a per-area write error so one bad path
// doesn't stop the others from being saved.
func (s *rpcServer) saveSnapshots() {
	s.shards.Range(func(_ uint64, shard areaShard) bool {
		if shard.SnapshotPath == "" {
			return true
		}
		if err := shard.Store.SaveSnapshotToFile(shard.SnapshotPath); err != nil {
			Logger.WithField("err", err).Warnf("failed to save snapshot for area %s", shard.Store.Area())
		}
		return true
	})
}

// Serve starts the RPC server. This initializes the server and its area
// shards, then blocks serving the transport layer.
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	defer func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.saveSnapshots()
	}()

	if s.floodTransport != nil {
		errCh := make(chan error, 1)
		floodConfig := s.config
		floodConfig.Endpoint = s.config.FloodEndpoint
		go func() {
			errCh <- s.floodTransport.Listen(floodConfig)
		}()

		listenErrCh := make(chan error, 1)
		go func() {
			listenErrCh <- s.transport.Listen(s.config)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("flood transport: %w", err)
		case err := <-listenErrCh:
			return err
		}
	}

	return s.transport.Listen(s.config)
}
