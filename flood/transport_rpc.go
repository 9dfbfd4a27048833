package flood

import (
	"context"
	"fmt"

	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/transport"
)

// rpcTransport adapts the shared rpc/transport client stack (tcp, unix,
// http) into the flood.Transport interface, addressing the peer's area
// via the same shardId hashing the control plane uses.
type rpcTransport struct {
	shardId    uint64
	newClient  func() transport.IRPCClientTransport
	serializer serializer.IRPCSerializer[common.FloodMessage]
	client     transport.IRPCClientTransport
	config     common.ClientConfig
}

// NewRPCTransport builds a flood.Transport for one peer address, using
// newClient to construct a fresh IRPCClientTransport per Dial (tcp, unix
// or http, matching the area's configured transport kind) and serializer
// to encode FloodMessage envelopes.
func NewRPCTransport(area string, newClient func() transport.IRPCClientTransport, serializer serializer.IRPCSerializer[common.FloodMessage], timeoutSecond int) *rpcTransport {
	return &rpcTransport{
		shardId:    common.ShardIdForArea(area),
		newClient:  newClient,
		serializer: serializer,
		config:     common.ClientConfig{TimeoutSecond: timeoutSecond, RetryCount: 1, ConnectionsPerEndpoint: 1},
	}
}

func (t *rpcTransport) Dial(ctx context.Context, address string) error {
	t.client = t.newClient()
	t.config.Endpoints = []string{address}
	return t.client.Connect(t.config)
}

func (t *rpcTransport) Request(ctx context.Context, msg *common.FloodMessage) (*common.FloodMessage, error) {
	if t.client == nil {
		return nil, fmt.Errorf("flood transport not connected")
	}
	reqBytes, err := t.serializer.Serialize(*msg)
	if err != nil {
		return nil, err
	}
	respBytes, err := t.client.Send(t.shardId, reqBytes)
	if err != nil {
		return nil, err
	}
	resp := &common.FloodMessage{}
	if err := t.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *rpcTransport) Send(ctx context.Context, msg *common.FloodMessage) error {
	_, err := t.Request(ctx, msg)
	return err
}

func (t *rpcTransport) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}
