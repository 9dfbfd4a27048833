package flood

import (
	"sync"
	"time"
)

// tokenBucket rate-limits outbound flood messages per peer, per §4.8's
// flood_msg_per_sec/flood_msg_burst_size config surface. Grounded on the
// same "count then wait" shape as the teacher's clientTransport retry
// loop, adapted from backoff timing to a refill-rate limiter.
type tokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64 // bucket capacity
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(ratePerSec float64, burst int) *tokenBucket {
	return &tokenBucket{
		rate:       ratePerSec,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Allow reports whether a message may be sent now, consuming one token
// if so.
func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
