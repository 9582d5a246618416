package stream

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff schedules reconnect delays: min(base*2^attempt, cap) plus
// uniform jitter in [0, delay/2). Attempt resets on a successful
// reconnect. Fatal errors never reach the controller.
type Backoff struct {
	mu      sync.Mutex
	base    time.Duration
	cap     time.Duration
	attempt int
	rng     *rand.Rand
}

// NewBackoff creates a controller with the given base and cap.
func NewBackoff(base, cap time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if cap < base {
		cap = base
	}
	return &Backoff{
		base: base,
		cap:  cap,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next reconnect attempt and advances
// the attempt counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.base << b.attempt
	if d > b.cap || d <= 0 { // <=0 guards shift overflow
		d = b.cap
	}
	if b.attempt < 62 {
		b.attempt++
	}
	jitter := time.Duration(b.rng.Int63n(int64(d/2) + 1))
	return d + jitter
}

// Reset clears the attempt counter after a successful reconnect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

// Attempt returns how many delays have been handed out since last reset.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}
