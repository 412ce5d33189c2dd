package coordinator

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Reconnect backoff defaults.
const (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 60 * time.Second

	backoffMultiplier = 2.0
	jitterFactor      = 0.25
)

// Backoff yields exponentially growing reconnect delays with up to 25%
// added jitter, so displays dropped together do not redial in lockstep.
type Backoff struct {
	mu      sync.Mutex
	current time.Duration
	initial time.Duration
	max     time.Duration
}

// NewBackoff creates a backoff between initial and max. Non-positive
// values fall back to the defaults.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxBackoff
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return &Backoff{current: initial, initial: initial, max: maxDelay}
}

// Next returns the next delay (with jitter) and advances.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current + time.Duration(float64(b.current)*jitterFactor*rand.Float64())

	next := time.Duration(float64(b.current) * backoffMultiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Reset returns to the initial delay. Call after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
}
