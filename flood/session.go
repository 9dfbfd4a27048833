// Package flood implements the peer-to-peer gossip layer that keeps
// per-area Stores eventually consistent: one Session per configured
// peer, cycling through an explicit connect/sync/steady-state/backoff
// state machine and exchanging FloodMessage envelopes over the shared
// rpc/transport stack.
package flood

import (
	"context"
	"sync"
	"time"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/internal/mpsc"
	"github.com/openr-go/openr/kvstore/kvconfig"
	"github.com/openr-go/openr/kvstore/kvmetrics"
	"github.com/openr-go/openr/rpc/common"
	"github.com/sirupsen/logrus"
)

// SessionState enumerates the peer session lifecycle from §4.7:
// Idle -> Connecting -> Syncing -> Established -> Backoff -> (Closed).
type SessionState uint8

const (
	StateIdle SessionState = iota
	StateConnecting
	StateSyncing
	StateEstablished
	StateBackoff
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateSyncing:
		return "Syncing"
	case StateEstablished:
		return "Established"
	case StateBackoff:
		return "Backoff"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Transport is the minimal peer-to-peer channel a Session needs: send one
// FloodMessage and block for the peer's reply, or push a one-way message
// (flood, keep-alive) with no reply expected. Dial performs whatever
// connection setup the concrete transport (tcp, unix, http long-poll)
// requires and is called once per Connecting attempt.
type Transport interface {
	Dial(ctx context.Context, address string) error
	Request(ctx context.Context, msg *common.FloodMessage) (*common.FloodMessage, error)
	Send(ctx context.Context, msg *common.FloodMessage) error
	Close() error
}

// Session runs the state machine for one peer of one area. It owns the
// peer's outbound flood queue and reconnect/backoff timing; the Store
// itself never blocks on peer I/O.
type Session struct {
	area      kvstore.Area
	nodeName  string
	peer      kvstore.PeerSpec
	store     *kvstore.Store
	transport Transport
	config    kvconfig.PeerSessionConfig
	log       *logrus.Entry

	limiter *tokenBucket
	backoff *backoff

	outbound *mpsc.Queue[kvstore.Publication]

	mu           sync.Mutex
	state        SessionState
	lastActivity time.Time
	pending      map[string]*kvstore.Value

	unsub  func()
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession constructs a session for peer, wired against store's
// Subscribe/SetKeyVals API. Run must be called to start the state
// machine goroutine.
func NewSession(area kvstore.Area, nodeName string, peer kvstore.PeerSpec, store *kvstore.Store, transport Transport, cfg kvconfig.PeerSessionConfig, rate kvconfig.FloodRateConfig, log *logrus.Entry) *Session {
	return &Session{
		area:      area,
		nodeName:  nodeName,
		peer:      peer,
		store:     store,
		transport: transport,
		config:    cfg,
		log:       log.WithField("peer", peer.PeerId),
		limiter:   newTokenBucket(rate.FloodMsgPerSec, rate.FloodMsgBurstSize),
		backoff:   newBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		outbound:  mpsc.New[kvstore.Publication](),
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) withSender(msg *common.FloodMessage) *common.FloodMessage {
	msg.SenderId = s.nodeName
	return msg
}

// touchActivity records that the peer was heard from (a successful
// keep-alive send, an inbound message, or a fresh full sync), resetting
// the hold-time clock idleSince measures against.
func (s *Session) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// idleSince returns how long it has been since the peer was last heard
// from. Backing off once this exceeds config.HoldTime is what actually
// consumes the hold_time knob (§4.7/§4.8), rather than counting
// consecutive keep-alive send failures.
func (s *Session) idleSince() time.Duration {
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()
	return time.Since(last)
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	kvmetrics.PeerState(string(s.area), s.peer.PeerId, int(state))
	s.log.WithField("state", state).Debugf("peer session transitioned")
}

// Run drives the state machine until Close is called. Intended to be
// started as its own goroutine, one per peer.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	stream, unsub := s.store.Subscribe(kvstore.MatchAllFilter())
	s.unsub = unsub
	go s.forwardAccepted(ctx, stream)

	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosed)
			return
		default:
		}

		s.setState(StateConnecting)
		dialCtx, dialCancel := context.WithTimeout(ctx, s.config.ConnTimeout)
		err := s.transport.Dial(dialCtx, s.peer.Address)
		dialCancel()
		if err != nil {
			s.log.WithField("err", err).Warnf("dial failed")
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}

		if !s.runEstablished(ctx) {
			return
		}
		if !s.sleepBackoff(ctx) {
			return
		}
	}
}

// runEstablished performs the full sync handshake and then holds the
// session open, exchanging keep-alives, until an error or the context
// closing knocks it back to Backoff. Returns false if the caller should
// stop entirely (context cancelled).
func (s *Session) runEstablished(ctx context.Context) bool {
	s.setState(StateSyncing)
	if err := s.fullSync(ctx); err != nil {
		s.log.WithField("err", err).Warnf("full sync failed")
		s.setState(StateBackoff)
		return true
	}

	s.setState(StateEstablished)
	s.backoff.Reset()
	s.touchActivity()

	keepAlive := time.NewTicker(s.config.KeepAliveInterval)
	defer keepAlive.Stop()
	floodPending := time.NewTicker(s.config.FloodPendingInterval)
	defer floodPending.Stop()
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			seq++
			reqCtx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
			err := s.transport.Send(reqCtx, s.withSender(common.NewKeepAlive(s.area, seq)))
			cancel()
			if err == nil {
				s.touchActivity()
			} else {
				s.log.WithField("err", err).Warnf("keep-alive send failed")
			}
			if idle := s.idleSince(); idle >= s.config.HoldTime {
				s.log.WithField("idle", idle).Warnf("no activity from peer within hold time, backing off")
				s.setState(StateBackoff)
				return true
			}
		case <-floodPending.C:
			s.tryFlush(ctx)
		case pub, ok := <-s.outboundStream():
			if !ok {
				return true
			}
			s.queueFlood(pub)
			s.tryFlush(ctx)
		}
	}
}

// fullSync exchanges the two full-sync legs of §4.7: send our hash
// summary, apply what the peer says we're missing, and answer their
// tobe-updated-keys request with our own values.
func (s *Session) fullSync(ctx context.Context) error {
	hashes := s.store.HashesSnapshot()
	req := s.withSender(common.NewFullSyncReq(s.area, common.KeyHashWireMapOf(hashes)))

	syncCtx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
	defer cancel()

	resp, err := s.transport.Request(syncCtx, req)
	if err != nil {
		return err
	}

	if len(resp.KeyVals) > 0 {
		if _, err := s.store.SetKeyVals(resp.KeyVals, s.peer.PeerId); err != nil {
			return err
		}
	}

	if len(resp.TobeUpdatedKeys) > 0 {
		vals := s.decrementForForward(s.store.GetKeyVals(resp.TobeUpdatedKeys))
		if len(vals) > 0 {
			followUp := s.withSender(common.NewFlood(s.area, vals))
			sendCtx, sendCancel := context.WithTimeout(ctx, s.config.ReadTimeout)
			defer sendCancel()
			if err := s.transport.Send(sendCtx, followUp); err != nil {
				return err
			}
		}
	}
	return nil
}

// forwardAccepted drains the Store's publication stream into this
// session's outbound queue, skipping publications sourced from this same
// peer so a flood never echoes straight back to its sender.
func (s *Session) forwardAccepted(ctx context.Context, stream <-chan *kvstore.Publication) {
	for {
		select {
		case <-ctx.Done():
			s.outbound.Close()
			return
		case pub, ok := <-stream:
			if !ok {
				s.outbound.Close()
				return
			}
			if pub.SourcePeer == s.peer.PeerId {
				continue
			}
			if len(pub.KeyVals) == 0 {
				continue
			}
			s.outbound.Push(pub)
		}
	}
}

func (s *Session) outboundStream() <-chan *kvstore.Publication {
	return s.outbound.Recv()
}

// decrementForForward applies the per-hop TTL decrement (§4.4) to every
// value in batch before it goes out to a peer, dropping any key whose
// decremented TTL would be <= 0 (§8's forward boundary property).
// TTL_INFINITY values pass through untouched.
func (s *Session) decrementForForward(batch map[string]*kvstore.Value) map[string]*kvstore.Value {
	out := make(map[string]*kvstore.Value, len(batch))
	for k, v := range batch {
		dv, ok := s.store.DecrementTTLForForward(v)
		if !ok {
			continue
		}
		out[k] = dv
	}
	return out
}

// queueFlood decrements pub's batch for the outbound hop and coalesces
// what survives into the pending buffer, capped at MaxFloodBatchKeys.
// Nothing is sent here; tryFlush drains the buffer once a token is free.
func (s *Session) queueFlood(pub *kvstore.Publication) {
	decremented := s.decrementForForward(pub.KeyVals)
	if len(decremented) == 0 {
		return
	}

	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(map[string]*kvstore.Value, len(decremented))
	}
	for k, v := range decremented {
		s.pending[k] = v
	}
	if len(s.pending) > kvconfig.MaxFloodBatchKeys {
		s.pending = truncate(s.pending, kvconfig.MaxFloodBatchKeys)
	}
	s.mu.Unlock()
}

// tryFlush sends the pending coalesced batch if the token bucket has a
// token free. A delta that loses the token race stays in the pending
// buffer and rides along with the next successful send instead of being
// dropped, per §4.7's flood-pending coalescing window.
func (s *Session) tryFlush(ctx context.Context) {
	if !s.limiter.Allow() {
		return
	}

	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
	defer cancel()
	if err := s.transport.Send(sendCtx, s.withSender(common.NewFlood(s.area, batch))); err != nil {
		s.log.WithField("err", err).Warnf("flood send failed")
	} else {
		kvmetrics.FloodSent.Inc()
	}
}

func truncate(m map[string]*kvstore.Value, n int) map[string]*kvstore.Value {
	out := make(map[string]*kvstore.Value, n)
	i := 0
	for k, v := range m {
		if i >= n {
			break
		}
		out[k] = v
		i++
	}
	return out
}

// sleepBackoff waits out the next backoff interval, returning false if
// the context was cancelled while waiting.
func (s *Session) sleepBackoff(ctx context.Context) bool {
	s.setState(StateBackoff)
	select {
	case <-time.After(s.backoff.Next()):
		return true
	case <-ctx.Done():
		return false
	}
}

// HandleFlood applies an inbound flood/full-sync message from the peer.
// Called by the transport's server-side dispatcher when this peer sends
// us a message outside of our own Request/Send calls.
func (s *Session) HandleFlood(msg *common.FloodMessage) *common.FloodMessage {
	kvmetrics.FloodReceived.Inc()
	s.touchActivity()
	switch msg.Type {
	case common.FloodMsgFullSyncReq:
		pub := s.store.DumpDifference(common.ToKeyHashMap(msg.KeyHashes))
		return common.NewFullSyncResp(s.area, pub.KeyVals, pub.TobeUpdatedKeys)
	case common.FloodMsgFlood, common.FloodMsgFullSyncResp:
		if len(msg.KeyVals) > 0 {
			_, _ = s.store.SetKeyVals(msg.KeyVals, s.peer.PeerId)
		}
		return nil
	case common.FloodMsgKeepAlive:
		return nil
	default:
		return nil
	}
}

// Close tears the session down, cancelling any in-flight I/O and
// unsubscribing from the Store.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.unsub != nil {
		s.unsub()
	}
	_ = s.transport.Close()
	<-s.done
}
