package flood

import (
	"math/rand"
	"time"
)

// backoff computes exponential reconnect delays with jitter, grounded on
// the retry loop in rpc/transport/base/client.go's clientTransport.Send:
// doubling delay, +-10% jitter, capped at a configured maximum.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances the internal state for the following call.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * (0.9 + 0.2*rand.Float64())
	delay := time.Duration(jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset returns the backoff to its initial delay, called once a session
// reaches Established.
func (b *backoff) Reset() {
	b.current = b.initial
}
