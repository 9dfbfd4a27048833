// Package rpc provides the control-plane and flood-plane communication
// layer for an openr node, connecting clients and peers to a node's
// per-area kvstore.Store instances across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Wire types shared across the RPC system, including the
//     Message and FloodMessage envelopes, configuration structures, and
//     logging.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options
//     (JSON, GOB) for converting between envelope types and byte arrays.
//
//   - client: RPC client implementation for the control-plane KvStore
//     operations, allowing applications to interact with a remote area
//     transparently.
//
//   - server: RPC server components that dispatch incoming control-plane
//     requests against a Store and route flood-plane messages to a
//     flood.Manager.
package rpc
