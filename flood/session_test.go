package flood_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openr-go/openr/flood"
	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/kvstore/kvtesting"
	"github.com/openr-go/openr/rpc/common"
)

// fakeSessionTransport is a flood.Transport stub: Dial always succeeds,
// Request answers with an empty FloodMessage so full sync and keep-alive
// exchanges complete without a real peer. Every message passed to Send is
// recorded so tests can inspect what a session actually put on the wire.
type fakeSessionTransport struct {
	mu        sync.Mutex
	dialCalls int
	sent      []*common.FloodMessage
}

func (f *fakeSessionTransport) Dial(ctx context.Context, address string) error {
	f.mu.Lock()
	f.dialCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeSessionTransport) Request(ctx context.Context, msg *common.FloodMessage) (*common.FloodMessage, error) {
	return &common.FloodMessage{}, nil
}

func (f *fakeSessionTransport) Send(ctx context.Context, msg *common.FloodMessage) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	_, err := f.Request(ctx, msg)
	return err
}

func (f *fakeSessionTransport) Close() error { return nil }

func (f *fakeSessionTransport) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialCalls
}

func (f *fakeSessionTransport) floodsSent() []*common.FloodMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*common.FloodMessage
	for _, m := range f.sent {
		if m.Type == common.FloodMsgFlood {
			out = append(out, m)
		}
	}
	return out
}

func TestSessionReachesEstablished(t *testing.T) {
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer store.Close()

	tr := &fakeSessionTransport{}
	cfg := kvconfig.DefaultPeerSessionConfig()
	rate := kvconfig.DefaultKvStoreConfig().FloodRate
	sess := flood.NewSession(kvstore.DefaultArea, "node-a", kvstore.PeerSpec{PeerId: "p1", Address: "fake://p1"}, store, tr, cfg, rate, kvtesting.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sess.Run(ctx)
	defer sess.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && sess.State() != flood.StateEstablished {
		time.Sleep(5 * time.Millisecond)
	}
	if sess.State() != flood.StateEstablished {
		t.Fatalf("expected session to reach Established, got %v", sess.State())
	}
	if tr.dialCount() == 0 {
		t.Fatal("expected transport.Dial to have been called")
	}
}

func TestSessionHandleFloodAppliesValues(t *testing.T) {
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer store.Close()

	tr := &fakeSessionTransport{}
	cfg := kvconfig.DefaultPeerSessionConfig()
	rate := kvconfig.DefaultKvStoreConfig().FloodRate
	sess := flood.NewSession(kvstore.DefaultArea, "node-a", kvstore.PeerSpec{PeerId: "p1", Address: "fake://p1"}, store, tr, cfg, rate, kvtesting.NewTestLogger())

	msg := common.NewFlood(string(kvstore.DefaultArea), map[string]*kvstore.Value{
		"k": {Version: 1, OriginatorId: "p1", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	})
	if resp := sess.HandleFlood(msg); resp != nil {
		t.Fatalf("expected no response to a one-way flood message, got %+v", resp)
	}

	got := store.GetKeyVals([]string{"k"})["k"]
	if got == nil || string(got.Payload) != "v" {
		t.Fatalf("expected flood to apply key k, got %+v", got)
	}
}

func TestSessionHandleFloodKeepAliveIsAcknowledgedSilently(t *testing.T) {
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer store.Close()

	tr := &fakeSessionTransport{}
	cfg := kvconfig.DefaultPeerSessionConfig()
	rate := kvconfig.DefaultKvStoreConfig().FloodRate
	sess := flood.NewSession(kvstore.DefaultArea, "node-a", kvstore.PeerSpec{PeerId: "p1", Address: "fake://p1"}, store, tr, cfg, rate, kvtesting.NewTestLogger())

	if resp := sess.HandleFlood(common.NewKeepAlive(string(kvstore.DefaultArea), 1)); resp != nil {
		t.Fatalf("expected no response to a keep-alive, got %+v", resp)
	}
}

func establishedSession(t *testing.T, store *kvstore.Store, tr *fakeSessionTransport, cfg kvconfig.PeerSessionConfig, rate kvconfig.FloodRateConfig) *flood.Session {
	t.Helper()
	sess := flood.NewSession(kvstore.DefaultArea, "node-a", kvstore.PeerSpec{PeerId: "p1", Address: "fake://p1"}, store, tr, cfg, rate, kvtesting.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sess.Run(ctx)
	t.Cleanup(sess.Close)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && sess.State() != flood.StateEstablished {
		time.Sleep(5 * time.Millisecond)
	}
	if sess.State() != flood.StateEstablished {
		t.Fatalf("session never reached Established, got %v", sess.State())
	}
	return sess
}

// TestSessionDecrementsTTLOnForward exercises the §4.4 in-transit TTL
// decrement on the queueFlood/tryFlush egress leg: a key with enough TTL to survive
// one hop goes out with its TTL reduced by the store's configured
// decrement, and a key whose TTL would hit zero is dropped instead of
// forwarded.
func TestSessionDecrementsTTLOnForward(t *testing.T) {
	const ttlDecrementMs = 100
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, ttlDecrementMs, kvtesting.NewTestLogger())
	defer store.Close()

	tr := &fakeSessionTransport{}
	cfg := kvconfig.DefaultPeerSessionConfig()
	cfg.FloodPendingInterval = 10 * time.Millisecond
	rate := kvconfig.DefaultKvStoreConfig().FloodRate
	establishedSession(t, store, tr, cfg, rate)

	if _, err := store.SetKeyVals(map[string]*kvstore.Value{
		"survives": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: 500},
		"dies":     {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: 50},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	var forwarded map[string]*kvstore.Value
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && forwarded == nil {
		for _, m := range tr.floodsSent() {
			if _, ok := m.KeyVals["survives"]; ok {
				forwarded = m.KeyVals
				break
			}
		}
		if forwarded == nil {
			time.Sleep(5 * time.Millisecond)
		}
	}
	if forwarded == nil {
		t.Fatal("expected a flood message carrying key \"survives\"")
	}
	if got := forwarded["survives"].Ttl; got != 500-ttlDecrementMs {
		t.Fatalf("expected in-transit TTL decrement to %d, got %d", 500-ttlDecrementMs, got)
	}
	for _, m := range tr.floodsSent() {
		if _, ok := m.KeyVals["dies"]; ok {
			t.Fatal("expected a key whose decremented TTL is <= 0 to never be forwarded")
		}
	}
}

// TestSessionCoalescesPendingFloodsPastTokenLimit exercises §4.7's
// flood-pending window: deltas that lose the token-bucket race are not
// dropped, they wait in the pending buffer and go out merged into the
// next successful send once a token frees up.
func TestSessionCoalescesPendingFloodsPastTokenLimit(t *testing.T) {
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer store.Close()

	tr := &fakeSessionTransport{}
	cfg := kvconfig.DefaultPeerSessionConfig()
	cfg.FloodPendingInterval = 10 * time.Millisecond
	rate := kvconfig.FloodRateConfig{FloodMsgPerSec: 5, FloodMsgBurstSize: 1}
	establishedSession(t, store, tr, cfg, rate)

	// Spends the single burst token on an unrelated key so the next two
	// deltas race for an empty bucket.
	if _, err := store.SetKeyVals(map[string]*kvstore.Value{
		"warmup": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(tr.floodsSent()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if len(tr.floodsSent()) == 0 {
		t.Fatal("expected the warmup key to consume the initial burst token")
	}

	if _, err := store.SetKeyVals(map[string]*kvstore.Value{
		"second": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}
	if _, err := store.SetKeyVals(map[string]*kvstore.Value{
		"third": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	var coalesced *common.FloodMessage
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && coalesced == nil {
		for _, m := range tr.floodsSent() {
			if _, ok := m.KeyVals["second"]; ok {
				coalesced = m
				break
			}
		}
		if coalesced == nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if coalesced == nil {
		t.Fatal("expected \"second\" to eventually go out once a token frees up")
	}
	if _, ok := coalesced.KeyVals["third"]; !ok {
		t.Fatal("expected \"second\" and \"third\" to be coalesced into the same outbound flood message")
	}
}
