package connection

import (
	"math"
	"time"
)

// Backoff computes reconnect delays: Base × Multiplier^attempt plus up to
// MaxJitter of jitter, capped at Max.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	MaxJitter  time.Duration
	Max        time.Duration
}

// Delay returns the wait before reconnect number attempt+1.
// jitter is a sample from [0, 1) and scales MaxJitter.
func (b Backoff) Delay(attempt int, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	jitter = math.Max(0, math.Min(jitter, 1))

	d := float64(b.Base)*math.Pow(b.Multiplier, float64(attempt)) + jitter*float64(b.MaxJitter)
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
