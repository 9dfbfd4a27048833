package server

import (
	"fmt"
	"time"

	"github.com/openr-go/openr/flood"
	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/rpc/common"
)

// NewKvStoreServerAdapter returns an adapter that dispatches the
// control-plane KvStore operations (keyGetValues, keyDumpAll, keySetValues,
// keyDel, peerAdd, peerDel, peerDump, subscribeKvStore) against a Store.
// floodManager may be nil (flood plane disabled), in which case
// peerAdd/peerDel only update the Store's own peer registry.
// longPollHoldTime bounds how long a subscribeKvStore request blocks
// waiting for a change before it replies no-change, per §5/§6.
func NewKvStoreServerAdapter(floodManager *flood.Manager, longPollHoldTime time.Duration) IRPCServerAdapter {
	return &kvStoreServerAdapterImpl{flood: floodManager, longPollHoldTime: longPollHoldTime}
}

type kvStoreServerAdapterImpl struct {
	flood            *flood.Manager
	longPollHoldTime time.Duration
}

func (adapter *kvStoreServerAdapterImpl) Handle(req *common.Message, store *kvstore.Store) *common.Message {
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTKeyGetValues:
		vals := store.GetKeyVals(req.Keys)
		pub := &kvstore.Publication{Area: store.Area(), KeyVals: vals}
		return common.NewKeyGetValuesResponse(pub, nil)

	case common.MsgTKeyDumpAll:
		filter, err := req.Filter.Compile()
		if err != nil {
			return common.NewKeyDumpAllResponse(nil, err)
		}
		vals := store.DumpAll(filter)
		pub := &kvstore.Publication{Area: store.Area(), KeyVals: vals}
		return common.NewKeyDumpAllResponse(pub, nil)

	case common.MsgTKeySetValues:
		accepted, err := store.SetKeyVals(req.KeyVals, "")
		return common.NewKeySetValuesResponse(accepted, err)

	case common.MsgTKeyDel:
		err := store.DelKeys(req.Keys)
		return common.NewKeyDelResponse(err)

	case common.MsgTPeerAdd:
		if req.PeerSpec == nil {
			return common.NewPeerAddResponse(fmt.Errorf("peerAdd: missing peer spec"))
		}
		if err := store.AddPeer(*req.PeerSpec); err != nil {
			return common.NewPeerAddResponse(err)
		}
		if adapter.flood != nil {
			adapter.flood.AddPeerNow(*req.PeerSpec)
		}
		return common.NewPeerAddResponse(nil)

	case common.MsgTPeerDel:
		if err := store.DelPeer(req.PeerId); err != nil {
			return common.NewPeerDelResponse(err)
		}
		if adapter.flood != nil {
			adapter.flood.DelPeer(req.PeerId)
		}
		return common.NewPeerDelResponse(nil)

	case common.MsgTPeerDump:
		peers := store.DumpPeers()
		return common.NewPeerDumpResponse(peers, nil)

	case common.MsgTSubscribeKvStore:
		filter, err := req.Filter.Compile()
		if err != nil {
			return common.NewErrorResponse(err.Error())
		}
		stream, cancel := store.Subscribe(filter)
		defer cancel()

		holdTime := adapter.longPollHoldTime
		if holdTime <= 0 {
			holdTime = kvconfig.DefaultPeerSessionConfig().LongPollHoldTime
		}
		timer := time.NewTimer(holdTime)
		defer timer.Stop()

		select {
		case pub, ok := <-stream:
			if !ok {
				return common.NewSubscribeKvStoreUpdate(&kvstore.Publication{Area: store.Area()})
			}
			return common.NewSubscribeKvStoreUpdate(pub)
		case <-timer.C:
			// No change within the hold window: reply empty so the caller
			// re-issues the long poll instead of waiting forever.
			return common.NewSubscribeKvStoreUpdate(&kvstore.Publication{Area: store.Area()})
		}

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("rpc kvstore adapter - unsupported message type: %s", req.MsgType),
		)
	}
}
