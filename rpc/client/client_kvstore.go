package client

import (
	"context"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/transport"
)

// NewRPCKvStoreClient creates a client for the control-plane KvStore
// operations of a single area, addressed by shardId.
func NewRPCKvStoreClient(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer[common.Message],
) (*RPCKvStoreClient, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RPCKvStoreClient{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// RPCKvStoreClient is a thin client for the keyGetValues, keyDumpAll,
// keySetValues, keyDel, peerAdd, peerDel and peerDump control-plane
// operations of a single area's Store.
type RPCKvStoreClient struct {
	rpcClientAdapter
}

func (c *RPCKvStoreClient) GetKeyVals(area string, keys []string) (map[string]*kvstore.Value, error) {
	req := common.NewKeyGetValuesRequest(area, keys)
	resp, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	if resp.Publication == nil {
		return nil, nil
	}
	return resp.Publication.KeyVals, nil
}

func (c *RPCKvStoreClient) DumpAll(area string, filter *common.FilterSpec) (map[string]*kvstore.Value, error) {
	req := common.NewKeyDumpAllRequest(area, filter)
	resp, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	if resp.Publication == nil {
		return nil, nil
	}
	return resp.Publication.KeyVals, nil
}

func (c *RPCKvStoreClient) SetKeyVals(area string, keyVals map[string]*kvstore.Value) (accepted []string, err error) {
	req := common.NewKeySetValuesRequest(area, keyVals)
	resp, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	return resp.AcceptedKeys, nil
}

func (c *RPCKvStoreClient) DelKeys(area string, keys []string) error {
	req := common.NewKeyDelRequest(area, keys)
	_, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	return err
}

func (c *RPCKvStoreClient) AddPeer(area string, spec kvstore.PeerSpec) error {
	req := common.NewPeerAddRequest(area, spec)
	_, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	return err
}

func (c *RPCKvStoreClient) DelPeer(area, peerId string) error {
	req := common.NewPeerDelRequest(area, peerId)
	_, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	return err
}

func (c *RPCKvStoreClient) DumpPeers(area string) ([]kvstore.PeerSpec, error) {
	req := common.NewPeerDumpRequest(area)
	resp, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// SubscribeKvStore issues a single long-poll round trip: it blocks on the
// server side up to that area's long_poll_hold_time and returns either the
// next Publication or an empty one on expiry (no change). Callers that
// want a continuous feed call this in a loop, as SubscribeLoop does.
func (c *RPCKvStoreClient) SubscribeKvStore(area string, filter *common.FilterSpec) (*kvstore.Publication, error) {
	req := common.NewSubscribeKvStoreRequest(area, filter)
	resp, err := invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	return resp.Publication, nil
}

// SubscribeLoop repeatedly long-polls SubscribeKvStore until ctx is
// cancelled, invoking onUpdate for every publication that carries a real
// change (skipping the empty no-change replies a hold-time expiry sends
// back).
func (c *RPCKvStoreClient) SubscribeLoop(ctx context.Context, area string, filter *common.FilterSpec, onUpdate func(*kvstore.Publication)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pub, err := c.SubscribeKvStore(area, filter)
		if err != nil {
			return err
		}
		if pub != nil && (len(pub.KeyVals) > 0 || len(pub.ExpiredKeys) > 0) {
			onUpdate(pub)
		}
	}
}
