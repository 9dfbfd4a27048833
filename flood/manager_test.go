package flood_test

import (
	"context"
	"testing"
	"time"

	"github.com/openr-go/openr/flood"
	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/kvstore/kvtesting"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/transport"
)

// fakeClientTransport answers every Send with an empty, successful
// FloodMessage so a Session's dial/full-sync/keep-alive flow completes
// without touching a real socket.
type fakeClientTransport struct {
	ser serializer.IRPCSerializer[common.FloodMessage]
}

func (f *fakeClientTransport) Connect(cfg common.ClientConfig) error { return nil }

func (f *fakeClientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	return f.ser.Serialize(common.FloodMessage{})
}

func (f *fakeClientTransport) Close() error { return nil }

func newTestManager(t *testing.T, peers []kvconfig.PeerConfig) (*flood.Manager, *kvstore.Store) {
	t.Helper()
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	ser := serializer.NewJSONSerializer[common.FloodMessage]()
	cfg := kvconfig.AreaConfig{
		Area:          kvstore.DefaultArea,
		KvStoreConfig: kvconfig.DefaultKvStoreConfig(),
		Session:       kvconfig.DefaultPeerSessionConfig(),
		Peers:         peers,
	}
	newClient := func() transport.IRPCClientTransport { return &fakeClientTransport{ser: ser} }
	m := flood.NewManager("node-a", store, cfg, newClient, ser, kvtesting.NewTestLogger())
	return m, store
}

func waitForState(t *testing.T, m *flood.Manager, peerId string, want flood.SessionState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s, ok := m.SessionStates()[peerId]; ok && s == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("peer %s did not reach state %v within %v", peerId, want, timeout)
}

func TestManagerStartDialsConfiguredPeers(t *testing.T) {
	m, store := newTestManager(t, []kvconfig.PeerConfig{{PeerId: "p1", Address: "fake://p1"}})
	defer store.Close()
	defer m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	waitForState(t, m, "p1", flood.StateEstablished, time.Second)
}

func TestManagerAddPeerNowUsesStartContext(t *testing.T) {
	m, store := newTestManager(t, nil)
	defer store.Close()
	defer m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.AddPeerNow(kvstore.PeerSpec{PeerId: "p2", Address: "fake://p2"})
	waitForState(t, m, "p2", flood.StateEstablished, time.Second)
}

func TestManagerDelPeerRemovesSession(t *testing.T) {
	m, store := newTestManager(t, []kvconfig.PeerConfig{{PeerId: "p1", Address: "fake://p1"}})
	defer store.Close()
	defer m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	waitForState(t, m, "p1", flood.StateEstablished, time.Second)

	m.DelPeer("p1")

	if _, ok := m.SessionStates()["p1"]; ok {
		t.Fatal("expected session to be removed after DelPeer")
	}
}

func TestManagerDispatchFallsBackWithoutSession(t *testing.T) {
	m, store := newTestManager(t, nil)
	defer store.Close()
	defer m.Stop()

	if _, err := store.SetKeyVals(map[string]*kvstore.Value{
		"k": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	req := common.NewFullSyncReq(string(kvstore.DefaultArea), nil)
	resp := m.Dispatch("unknown-peer", req)
	if resp == nil {
		t.Fatal("expected a full-sync response even without a live session")
	}
	if _, ok := resp.KeyVals["k"]; !ok {
		t.Fatalf("expected key k in fallback full-sync response, got %+v", resp.KeyVals)
	}
}
