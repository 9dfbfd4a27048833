package client

import (
	"fmt"

	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/transport"
)

var Logger = common.CreateLogger("rpc")

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client.
// Embedded by RPCKvStoreClient (composition pattern).
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer[common.Message]
}

// invokeRPCRequest is a helper function used for all RPC clients to send requests.
// It takes a shard ID, a request message, a transport layer and a serializer as parameters.
// It returns a response message and an error if any occurs.
// This method also checks if the response is an error response and if the type of the response is the expected type.
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer[common.Message]) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the handler
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("rpc client - error: %s", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, fmt.Errorf("rpc client - error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("rpc client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
