package server

import (
	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It is responsible for handling requests and producing responses.
type IRPCServerAdapter interface {
	// Handle handles a request against the area's Store and returns a
	// response Message. If an error occurs, it is set on the response
	// rather than returned separately.
	Handle(req *common.Message, store *kvstore.Store) (resp *common.Message)
}
