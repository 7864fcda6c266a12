package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket for one provider. Refill and debit are
// atomic under the bucket's internal lock, so concurrent callers never
// overdraw: tokens consumed over any interval are bounded by
// burst + rate x elapsed seconds.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter creates a limiter refilling at ratePerSec with the given burst
// capacity.
func NewLimiter(ratePerSec float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Acquire attempts to take n tokens without blocking.
func (l *Limiter) Acquire(n int) bool {
	return l.bucket.AllowN(timeNow(), n)
}

// Wait blocks until n tokens are available or the context is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.bucket.WaitN(ctx, n)
}

// Tokens reports the tokens available right now; used by telemetry and tests.
func (l *Limiter) Tokens() float64 {
	return l.bucket.TokensAt(timeNow())
}
