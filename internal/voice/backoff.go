package voice

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: base doubled per attempt, capped,
// with a little jitter so simultaneous clients do not reconnect in
// lockstep.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// DefaultBackoff matches the session reconnect schedule: 500ms, 1s, 2s,
// capped at 8s.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   500 * time.Millisecond,
		Max:    8 * time.Second,
		Jitter: 250 * time.Millisecond,
	}
}

// Delay returns the wait before reconnect attempt n (zero-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	if d > b.Max {
		d = b.Max
	}

	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}
