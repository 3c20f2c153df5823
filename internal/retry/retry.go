// Package retry provides the capped exponential backoff schedule used
// when refetching calendar feeds.
package retry

import (
	"math"
	"time"
)

// Policy describes a backoff schedule: Base grows by Factor per attempt
// and never exceeds Cap. The zero value backs off from one second,
// doubling without a ceiling.
type Policy struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
}

// Delay returns how long to wait before the given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
