package kvstore

import (
	"bytes"
	"fmt"
	"time"

	"github.com/openr-go/openr/internal/mpsc"
	"github.com/openr-go/openr/kvstore/kvmetrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

// PeerSpec is the peer registration record accepted by AddPeer: a peer
// id and the transport address the flood session dials.
type PeerSpec struct {
	PeerId  string
	Address string
}

// subscriber is one active subscription: an mpsc queue fed by the event
// loop plus the filter applied on egress.
type subscriber struct {
	id     uint64
	filter *Filter
	queue  *mpsc.Queue[Publication]
}

// Store holds the authoritative key-value map for one area, fronting the
// merge/TTL/diff engines and fanning out accepted deltas to subscribers.
// One Store per area; areas never share state.
//
// Concurrency model (§5): a single event-loop goroutine owns values,
// ttl and peers; all mutation happens there. External callers submit
// work through submit() and block for the result, so from the caller's
// perspective every operation looks synchronous even though it is
// actually serialized onto the loop. Accepted merges and expiries also
// update readView, an xsync.MapOf mirror that GetKeyVals and DumpAll
// read lock-free without going through the loop.
type Store struct {
	area     Area
	nodeName string
	log      *logrus.Entry

	values map[string]*Value
	filter *Filter
	ttl    *ttlEngine

	peers *xsync.MapOf[string, PeerSpec]

	subs      map[uint64]*subscriber
	nextSubId uint64

	readView *xsync.MapOf[string, *Value]

	cmdCh   chan func()
	closeCh chan struct{}
	closed  bool
}

// NewStore constructs a Store for area, owned by nodeName, with the given
// ingress/egress filter (nil means match-all) and TTL parameters. It
// starts the event loop goroutine immediately.
func NewStore(area Area, nodeName string, filter *Filter, keyTtlMs, ttlDecrementMs int64, log *logrus.Entry) *Store {
	if filter == nil {
		filter = MatchAllFilter()
	}
	s := &Store{
		area:     area,
		nodeName: nodeName,
		log:      log.WithField("area", area),
		values:   make(map[string]*Value),
		filter:   filter,
		ttl:      newTtlEngine(nodeName, keyTtlMs, ttlDecrementMs),
		peers:    xsync.NewMapOf[string, PeerSpec](),
		subs:     make(map[uint64]*subscriber),
		readView: xsync.NewMapOf[string, *Value](),
		cmdCh:    make(chan func(), 64),
		closeCh:  make(chan struct{}),
	}
	go s.loop()
	return s
}

// Area returns the area this Store serves.
func (s *Store) Area() Area { return s.area }

// submit runs fn on the event loop goroutine and waits for it to finish.
func (s *Store) submit(fn func()) {
	done := make(chan struct{})
	select {
	case s.cmdCh <- func() { fn(); close(done) }:
	case <-s.closeCh:
		return
	}
	select {
	case <-done:
	case <-s.closeCh:
	}
}

// loop is the single-threaded cooperative event loop for this area: all
// map mutation and merge happens here. Grounded on the per-shard
// goroutine + timer select pattern of the teacher's garbageCollector,
// generalized from a single collection timer to a command channel plus
// two timers (TTL expiry, originator refresh).
func (s *Store) loop() {
	refreshTicker := time.NewTicker(s.ttl.refreshPeriod)
	defer refreshTicker.Stop()

	expiryTimer := time.NewTimer(time.Hour)
	defer expiryTimer.Stop()
	s.rearmExpiryTimer(expiryTimer)

	for {
		select {
		case cmd := <-s.cmdCh:
			cmd()
			s.rearmExpiryTimer(expiryTimer)
		case <-refreshTicker.C:
			s.refreshOriginated()
		case <-expiryTimer.C:
			s.expireDue()
			s.rearmExpiryTimer(expiryTimer)
		case <-s.closeCh:
			for _, sub := range s.subs {
				sub.queue.Close()
			}
			return
		}
	}
}

func (s *Store) rearmExpiryTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	deadline, ok := s.ttl.NextDeadline()
	if !ok {
		t.Reset(time.Hour)
		return
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}

// expireDue pops keys whose TTL has elapsed and publishes them.
func (s *Store) expireDue() {
	now := time.Now()
	expired := s.ttl.PopExpired(now)
	if len(expired) == 0 {
		return
	}
	for _, key := range expired {
		delete(s.values, key)
		s.readView.Delete(key)
		kvmetrics.TtlExpired.Inc()
	}
	s.publish(Publication{Area: s.area, ExpiredKeys: expired})
}

// refreshOriginated re-emits a TTL-only bump for every locally-originated
// key with a finite TTL, per §4.4's originator refresh.
func (s *Store) refreshOriginated() {
	batch := make(map[string]*Value)
	for key, v := range s.values {
		if refreshed := s.ttl.RefreshOriginated(key, v); refreshed != nil {
			batch[key] = refreshed
		}
	}
	if len(batch) == 0 {
		return
	}
	s.applyMerge(batch, "")
}

// SetKeyVals merges batch into the local map and returns the keys that
// were accepted. sourcePeer names the peer a flood batch arrived from
// (empty for locally-originated writes); it flows through to the
// published Publication so the flood layer can avoid reflecting a delta
// back to the peer that sent it.
func (s *Store) SetKeyVals(batch map[string]*Value, sourcePeer string) (accepted []string, err error) {
	if len(batch) == 0 {
		return nil, nil
	}
	s.submit(func() {
		accepted = s.applyMerge(batch, sourcePeer)
	})
	return accepted, nil
}

func (s *Store) applyMerge(batch map[string]*Value, sourcePeer string) []string {
	// snapshot values touched by this batch to detect the payload
	// tie-break-after-restart case for diagnostics, without adding an
	// observability hook to the (pure) merge function itself.
	before := make(map[string]*Value, len(batch))
	for key := range batch {
		if v, ok := s.values[key]; ok {
			before[key] = v
		}
	}

	delta, rejects := mergeKeyValues(s.values, batch, s.filter)

	for key, reason := range rejects {
		switch reason {
		case RejectOldVersion, RejectStaleTtlOnly, RejectNoIncarnationBump:
			kvmetrics.RejectedStale.Inc()
		case RejectFiltered:
			kvmetrics.RejectedFiltered.Inc()
		case RejectBadTtl:
			kvmetrics.RejectedBadTtl.Inc()
		}
		s.log.WithField("key", key).Debugf("rejected incoming value: %s", reason)
	}

	if len(delta) == 0 {
		return nil
	}

	now := time.Now()
	accepted := make([]string, 0, len(delta))
	for key, v := range delta {
		accepted = append(accepted, key)
		s.ttl.Track(key, v, now)
		s.readView.Store(key, v.Clone())

		if prev, ok := before[key]; ok && prev.Version == v.Version && prev.OriginatorId == v.OriginatorId && !bytes.Equal(prev.Payload, v.Payload) {
			s.log.WithField("key", key).Debugf("Previous incarnation reflected back")
		}
	}

	s.publish(Publication{Area: s.area, KeyVals: delta, SourcePeer: sourcePeer})
	kvmetrics.SyncRounds.Inc()
	return accepted
}

// GetKeyVals returns the current Values for the requested keys, filtered
// on egress. Values not present, expired, or filtered out are omitted.
func (s *Store) GetKeyVals(keys []string) map[string]*Value {
	out := make(map[string]*Value)
	for _, key := range keys {
		v, ok := s.readView.Load(key)
		if !ok || !s.filter.Match(key, v) {
			continue
		}
		out[key] = v.Clone()
	}
	return out
}

// DecrementTTLForForward applies the fixed in-transit TTL decrement used
// when re-flooding v to a peer (§4.4). ok is false if the result would be
// <= 0, meaning the caller must drop v from that flood instead of
// forwarding it. Safe to call from any goroutine: it only reads the
// store's fixed ttl decrement amount, never touching the event loop's
// mutable state.
func (s *Store) DecrementTTLForForward(v *Value) (out *Value, ok bool) {
	return s.ttl.Decrement(v)
}

// DumpAll returns every key currently stored that passes filter (in
// addition to the Store's own ingress/egress filter). filter may be nil.
func (s *Store) DumpAll(filter *Filter) map[string]*Value {
	out := make(map[string]*Value)
	s.readView.Range(func(key string, v *Value) bool {
		if !s.filter.Match(key, v) {
			return true
		}
		if filter != nil && !filter.Match(key, v) {
			return true
		}
		out[key] = v.Clone()
		return true
	})
	return out
}

// DumpDifference runs the three-way diff engine (§4.5) against reqHashes,
// used to answer the first leg of full-sync.
func (s *Store) DumpDifference(reqHashes map[string]KeyHash) Publication {
	var pub Publication
	s.submit(func() {
		snapshot := make(map[string]*Value, len(s.values))
		for k, v := range s.values {
			snapshot[k] = v
		}
		pub = dumpDifferenceFromHashes(snapshot, reqHashes)
		pub.Area = s.area
	})
	return pub
}

// HashesSnapshot returns the compact key-hash map used to open a
// full-sync (FullSyncReq.key_hashes).
func (s *Store) HashesSnapshot() map[string]KeyHash {
	var out map[string]KeyHash
	s.submit(func() {
		out = hashesOf(s.values)
	})
	return out
}

// DelKeys deletes keys by internally setting an empty-payload value at
// one past the current max version, per §6's keyDel semantics: "set with
// empty payload + max version".
func (s *Store) DelKeys(keys []string) error {
	batch := make(map[string]*Value)
	s.submit(func() {
		for _, key := range keys {
			version := int64(1)
			if v, ok := s.values[key]; ok {
				version = v.Version + 1
			}
			batch[key] = &Value{
				Version:      version,
				OriginatorId: s.nodeName,
				Payload:      []byte{},
				Ttl:          s.ttl.keyTtlMs,
			}
		}
	})
	_, err := s.SetKeyVals(batch, "")
	return err
}

// AddPeer registers peer bookkeeping for peerDump; the actual session
// state machine is owned by flood.Manager.
func (s *Store) AddPeer(spec PeerSpec) error {
	if spec.PeerId == "" {
		return NewFieldError(RetCInvalidRequest, "peer_id", "peer id must not be empty")
	}
	if _, loaded := s.peers.LoadOrStore(spec.PeerId, spec); loaded {
		return NewFieldError(RetCInvalidRequest, "peer_id", "peer already registered")
	}
	return nil
}

// DelPeer removes a peer's bookkeeping entry.
func (s *Store) DelPeer(peerId string) error {
	if _, ok := s.peers.LoadAndDelete(peerId); !ok {
		return NewFieldError(RetCInvalidRequest, "peer_id", "peer not registered")
	}
	return nil
}

// DumpPeers returns every currently registered peer spec.
func (s *Store) DumpPeers() []PeerSpec {
	out := make([]PeerSpec, 0)
	s.peers.Range(func(_ string, spec PeerSpec) bool {
		out = append(out, spec)
		return true
	})
	return out
}

// Subscribe registers a new subscription and returns a stream of
// publications, restartable only from "now" (no backlog replay). Call
// the returned cancel function to unsubscribe.
func (s *Store) Subscribe(filter *Filter) (stream <-chan *Publication, cancel func()) {
	if filter == nil {
		filter = MatchAllFilter()
	}
	sub := &subscriber{filter: filter, queue: mpsc.New[Publication]()}
	s.submit(func() {
		s.nextSubId++
		sub.id = s.nextSubId
		s.subs[sub.id] = sub
	})
	cancelFn := func() {
		s.submit(func() {
			delete(s.subs, sub.id)
		})
		sub.queue.Close()
	}
	return sub.queue.Recv(), cancelFn
}

// publish fans a Publication out to every subscriber whose filter admits
// at least one of its keys, applying that subscriber's filter to trim
// the copy it receives. Runs on the event-loop goroutine.
func (s *Store) publish(pub Publication) {
	for _, sub := range s.subs {
		filtered := Publication{
			Area:        pub.Area,
			ExpiredKeys: pub.ExpiredKeys,
			SourcePeer:  pub.SourcePeer,
		}
		if len(pub.KeyVals) > 0 {
			kv := make(map[string]*Value)
			for k, v := range pub.KeyVals {
				if sub.filter.Match(k, v) {
					kv[k] = v.Clone()
				}
			}
			if len(kv) == 0 && len(filtered.ExpiredKeys) == 0 {
				continue
			}
			filtered.KeyVals = kv
		} else if len(filtered.ExpiredKeys) == 0 {
			continue
		}
		sub.queue.Push(&filtered)
	}
}

// Close shuts down the event loop and cancels all subscriptions.
func (s *Store) Close() {
	s.submit(func() {
		if s.closed {
			return
		}
		s.closed = true
	})
	close(s.closeCh)
}

func (s *Store) String() string {
	return fmt.Sprintf("Store{area=%s, node=%s}", s.area, s.nodeName)
}
