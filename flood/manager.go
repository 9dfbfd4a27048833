package flood

import (
	"context"
	"sync"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/serializer"
	"github.com/openr-go/openr/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

// Manager owns the flood sessions for a single area's Store: one Session
// per statically configured peer, dialed and kept alive for the life of
// the Manager, plus dispatch of inbound FloodMessages arriving from
// peers that dialed us.
type Manager struct {
	area     kvstore.Area
	nodeName string
	store    *kvstore.Store
	log      *logrus.Entry

	newClient func() transport.IRPCClientTransport
	ser       serializer.IRPCSerializer[common.FloodMessage]
	cfg       kvconfig.AreaConfig

	mu       sync.Mutex
	sessions *xsync.MapOf[string, *Session]
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager constructs a Manager for one area. newClient selects the
// transport kind (tcp/unix/http) sessions dial peers with.
func NewManager(nodeName string, store *kvstore.Store, cfg kvconfig.AreaConfig, newClient func() transport.IRPCClientTransport, ser serializer.IRPCSerializer[common.FloodMessage], log *logrus.Entry) *Manager {
	return &Manager{
		area:      cfg.Area,
		nodeName:  nodeName,
		store:     store,
		log:       log.WithField("area", cfg.Area),
		newClient: newClient,
		ser:       ser,
		cfg:       cfg,
		sessions:  xsync.NewMapOf[string, *Session](),
	}
}

// Start dials every statically configured peer and keeps their sessions
// running until Stop is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.runCtx = ctx
	m.cancel = cancel
	m.mu.Unlock()

	for _, p := range m.cfg.Peers {
		m.addPeerLocked(ctx, kvstore.PeerSpec{PeerId: p.PeerId, Address: p.Address})
	}
}

// AddPeer dials a newly registered peer, mirroring the Store's own peer
// registry (a store.AddPeer call should always be paired with this).
func (m *Manager) AddPeer(ctx context.Context, spec kvstore.PeerSpec) {
	m.addPeerLocked(ctx, spec)
}

// AddPeerNow dials a newly registered peer using the context Start was
// called with, for callers (the control-plane peerAdd handler) that don't
// carry a request-scoped context of their own.
func (m *Manager) AddPeerNow(spec kvstore.PeerSpec) {
	m.mu.Lock()
	ctx := m.runCtx
	m.mu.Unlock()
	if ctx == nil {
		return
	}
	m.addPeerLocked(ctx, spec)
}

func (m *Manager) addPeerLocked(ctx context.Context, spec kvstore.PeerSpec) {
	if _, ok := m.sessions.Load(spec.PeerId); ok {
		return
	}
	tr := NewRPCTransport(m.area, m.newClient, m.ser, int(m.cfg.Session.ConnTimeout.Seconds()))
	session := NewSession(m.area, m.nodeName, spec, m.store, tr, m.cfg.Session, m.cfg.KvStoreConfig.FloodRate, m.log)
	if _, loaded := m.sessions.LoadOrStore(spec.PeerId, session); loaded {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		session.Run(ctx)
	}()
}

// DelPeer closes and forgets a peer's session.
func (m *Manager) DelPeer(peerId string) {
	session, ok := m.sessions.LoadAndDelete(peerId)
	if ok {
		session.Close()
	}
}

// Dispatch routes an inbound FloodMessage to the session for the peer it
// came from. If no session exists yet (the peer dialed us before we
// dialed them), full-sync and flood requests are still answered directly
// against the Store; only keep-alive bookkeeping requires a live session.
func (m *Manager) Dispatch(peerId string, msg *common.FloodMessage) *common.FloodMessage {
	session, ok := m.sessions.Load(peerId)
	if ok {
		return session.HandleFlood(msg)
	}

	switch msg.Type {
	case common.FloodMsgFullSyncReq:
		pub := m.store.DumpDifference(common.ToKeyHashMap(msg.KeyHashes))
		return common.NewFullSyncResp(m.area, pub.KeyVals, pub.TobeUpdatedKeys)
	case common.FloodMsgFlood, common.FloodMsgFullSyncResp:
		if len(msg.KeyVals) > 0 {
			_, _ = m.store.SetKeyVals(msg.KeyVals, peerId)
		}
		return nil
	default:
		return nil
	}
}

// SessionStates returns a snapshot of every peer session's current
// state, for diagnostics.
func (m *Manager) SessionStates() map[string]SessionState {
	out := make(map[string]SessionState, m.sessions.Size())
	m.sessions.Range(func(id string, s *Session) bool {
		out[id] = s.State()
		return true
	})
	return out
}

// Stop cancels every session and waits for their goroutines to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
