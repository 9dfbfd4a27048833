// Package client implements the control-plane RPC client for an openr
// node: a thin adapter over the transport/serializer stack that turns
// keyGetValues/keyDumpAll/keySetValues/keyDel/peerAdd/peerDel/peerDump
// calls into request/response round trips against a single area's shard.
//
// Key Components:
//
//   - NewRPCKvStoreClient: factory function that connects a transport and
//     returns an RPCKvStoreClient bound to one area's shardId.
//
//   - RPCKvStoreClient: the client itself, one method per control-plane
//     operation.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:8080"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	c, _ := client.NewRPCKvStoreClient(
//	  common.ShardIdForArea("0"),
//	  config,
//	  http.NewHttpClientTransport(),
//	  serializer.NewJSONSerializer[common.Message](),
//	)
//
//	accepted, _ := c.SetKeyVals("0", map[string]*kvstore.Value{
//	  "mykey": {Version: 1, OriginatorId: "cli", Payload: []byte("myvalue"), Ttl: kvstore.TTLInfinity},
//	})
//
// Thread Safety:
//
//	A client is safe for concurrent use by multiple goroutines; the
//	underlying transport serializes requests as needed.
package client
