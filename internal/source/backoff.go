package source

import (
	"math"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1000 * time.Millisecond
	DefaultMultiplier  = 1.5
)

// Backoff is an exponential retry schedule without jitter
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration // zero means uncapped
}

// DefaultBackoff returns the 1s x1.5 schedule
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBaseDelay, Multiplier: DefaultMultiplier}
}

// Delay returns the wait before the n-th retry (n starts at 1)
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 || b.Base <= 0 {
		return 0
	}
	m := b.Multiplier
	if m < 1 {
		m = 1
	}
	d := time.Duration(float64(b.Base) * math.Pow(m, float64(n-1)))
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
