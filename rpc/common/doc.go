// Package common provides the wire types and configuration structures
// shared across an openr node's RPC surface: the control-plane Message
// envelope, the flood-plane FloodMessage envelope, server/client
// configuration, and the logrus-backed logger factory used throughout
// the module.
//
// The package focuses on:
//   - Message protocol definition for the control plane (keyGetValues,
//     keyDumpAll, keySetValues, keyDel, peerAdd, peerDel, peerDump,
//     subscribeKvStore)
//   - FloodMessage protocol definition for the gossip plane (fullSyncReq,
//     fullSyncResp, flood, keepAlive)
//   - Configuration structures for client and server components
//   - A shared shardId hash so the control plane and flood plane route to
//     the same per-area shard
//   - A logrus.Entry factory used by every package instead of ad hoc
//     logger construction
//
// Key Components:
//
//   - Message: the RPC envelope for every control-plane operation, with
//     factory functions for each request/response pair.
//
//   - FloodMessage: the RPC envelope for every gossip-plane operation.
//
//   - ServerConfig / ClientConfig: flat configuration structs for server
//     and client components.
//
//   - CreateLogger / InitLoggers: the logging setup shared by every
//     package.
package common
