// Package server implements the RPC server side of an openr node: one
// areaShard (a kvstore.Store plus its adapter) per configured area, and
// optionally a flood.Manager driving that area's peer gossip sessions.
//
// The package focuses on:
//   - Dispatching control-plane requests (keyGetValues, keySetValues,
//     keyDumpAll, keyDel, peerAdd, peerDel, peerDump) against the right
//     area's Store
//   - Routing flood-plane messages (fullSyncReq, fullSyncResp, flood,
//     keepAlive) to the right area's flood.Manager over a second listener
//   - Keeping peerAdd/peerDel in sync between the Store's own peer
//     registry and the flood sessions dialing those peers
//
// Key Components:
//
//   - IRPCServerAdapter: the contract for dispatching a control-plane
//     Message against a Store.
//
//   - NewKvStoreServerAdapter: builds the adapter used for every area,
//     optionally wired to a flood.Manager so peerAdd/peerDel also manage
//     that peer's flood session.
//
//   - NewRPCServer: builds a server bound to a control-plane transport
//     and, when a flood endpoint is configured, a second transport for
//     the gossip plane.
//
// Usage Example:
//
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewJSONSerializer[common.Message](),
//	  http.NewHttpServerTransport(),
//	  serializer.NewJSONSerializer[common.FloodMessage](),
//	  func() transport.IRPCClientTransport { return http.NewHttpClientTransport() },
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent
//	requests across multiple connections. The Serve method is not
//	thread-safe and should be called only once.
package server
