// Package kvmetrics exposes the counters and gauges the kvstore and flood
// packages update as they run, backed by VictoriaMetrics' process-wide
// default registry so they surface on the same /metrics endpoint as the
// rest of the process.
package kvmetrics

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

var (
	// RejectedStale counts incoming Values dropped for carrying a version
	// or ttlVersion the local store already has or has surpassed.
	RejectedStale = metrics.NewCounter("openr_kvstore_rejected_stale_total")
	// RejectedFiltered counts incoming Values dropped by the area filter.
	RejectedFiltered = metrics.NewCounter("openr_kvstore_rejected_filtered_total")
	// RejectedBadTtl counts incoming Values dropped for a non-positive,
	// non-infinite ttl.
	RejectedBadTtl = metrics.NewCounter("openr_kvstore_rejected_bad_ttl_total")
	// TtlExpired counts keys removed by the TTL expiry heap.
	TtlExpired = metrics.NewCounter("openr_kvstore_ttl_expired_total")
	// SyncRounds counts accepted merge batches, whether originated
	// locally, via a control-plane write, or via a flood.
	SyncRounds = metrics.NewCounter("openr_kvstore_sync_rounds_total")
	// FloodSent counts flood messages sent to peers.
	FloodSent = metrics.NewCounter("openr_flood_sent_total")
	// FloodReceived counts flood messages accepted from peers.
	FloodReceived = metrics.NewCounter("openr_flood_received_total")
)

// gaugeValues backs setGauge's callback-based gauges with a per-name
// atomic value, since this version of metrics.Gauge only exposes a
// read callback supplied at creation time rather than a Set method.
var gaugeValues sync.Map // map[string]*atomic.Uint64 (math.Float64bits)

// setGauge records value for the named gauge, registering it with the
// default metrics set on first use.
func setGauge(name string, value float64) {
	stored, _ := gaugeValues.LoadOrStore(name, new(atomic.Uint64))
	bits := stored.(*atomic.Uint64)
	bits.Store(math.Float64bits(value))
	metrics.GetOrCreateGauge(name, func() float64 {
		return math.Float64frombits(bits.Load())
	})
}

// PeerState reflects a peer session's current state as a gauge, one
// series per peer, so a scrape shows the whole peer table at a glance.
func PeerState(area, peerId string, state int) {
	setGauge(fmt.Sprintf(`openr_flood_peer_state{area=%q,peer=%q}`, area, peerId), float64(state))
}

// FloodQueueDepth reports the number of publications queued for a peer
// awaiting send, used to spot a peer falling behind.
func FloodQueueDepth(area, peerId string, depth int) {
	setGauge(fmt.Sprintf(`openr_flood_queue_depth{area=%q,peer=%q}`, area, peerId), float64(depth))
}
