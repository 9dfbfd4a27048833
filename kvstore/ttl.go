package kvstore

import (
	"time"

	"github.com/openr-go/openr/kvstore/internal/expheap"
)

// ttlFloor bounds how aggressively the originator refresh timer can fire,
// regardless of how short key_ttl_ms is configured.
const ttlFloor = 50 * time.Millisecond

// ttlEngine schedules expiry and originator-side refresh for one area's
// Store. It owns a deadline-ordered heap (adapted from the teacher's
// garbage-collection MapHeap) keyed directly by the store key, plus the
// refresh period and local node name used to build originator-side TTL
// refreshes.
//
// Not safe for concurrent use; only the Store's event-loop goroutine
// touches it.
type ttlEngine struct {
	heap          *expheap.Heap
	keyTtlMs      int64
	ttlDecrement  int64
	refreshPeriod time.Duration
	nodeName      string
}

func newTtlEngine(nodeName string, keyTtlMs, ttlDecrementMs int64) *ttlEngine {
	period := time.Duration(keyTtlMs/4) * time.Millisecond
	if period < ttlFloor {
		period = ttlFloor
	}
	return &ttlEngine{
		heap:          expheap.New(),
		keyTtlMs:      keyTtlMs,
		ttlDecrement:  ttlDecrementMs,
		refreshPeriod: period,
		nodeName:      nodeName,
	}
}

// Track schedules or reschedules v's expiry, keyed by key. TTL_INFINITY
// values never enter the heap.
func (e *ttlEngine) Track(key string, v *Value, now time.Time) {
	if v.Ttl == TTLInfinity {
		e.heap.Cancel(key)
		return
	}
	deadline := now.Add(time.Duration(v.Ttl) * time.Millisecond).UnixNano()
	e.heap.Schedule(key, deadline)
}

// Untrack removes key from the expiry schedule, e.g. on explicit delete.
func (e *ttlEngine) Untrack(key string) {
	e.heap.Cancel(key)
}

// PopExpired returns the keys whose deadline has passed as of now.
func (e *ttlEngine) PopExpired(now time.Time) []string {
	return e.heap.PopExpired(now.UnixNano())
}

// NextDeadline returns the time the next expiry fires, or ok=false if
// nothing is scheduled. Used by the Store event loop to size its timer.
func (e *ttlEngine) NextDeadline() (time.Time, bool) {
	ns, ok := e.heap.PeekDeadline()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Decrement applies the fixed in-transit TTL decrement used on every
// forward hop. ok is false if the result would be <= 0, meaning the
// caller must drop the value from that flood rather than forward it.
func (e *ttlEngine) Decrement(v *Value) (out *Value, ok bool) {
	if v.Ttl == TTLInfinity {
		return v, true
	}
	remaining := v.Ttl - e.ttlDecrement
	if remaining <= 0 {
		return nil, false
	}
	cp := v.Clone()
	cp.Ttl = remaining
	return cp, true
}

// RefreshOriginated returns the periodic TTL-only refresh of a
// locally-originated, finite-TTL value, ready to merge back into the local
// map and flood. It returns nil for values originated elsewhere or with
// TTL_INFINITY.
func (e *ttlEngine) RefreshOriginated(key string, v *Value) *Value {
	if v.OriginatorId != e.nodeName || v.Ttl == TTLInfinity {
		return nil
	}
	refreshed := v.Clone()
	refreshed.Ttl = e.keyTtlMs
	refreshed.TtlVersion = v.TtlVersion + 1
	refreshed.Payload = nil // TTL-only: no payload on the wire
	return refreshed
}
