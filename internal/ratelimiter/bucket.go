package ratelimiter

import "time"

// bucket is one (tier, key) token bucket, continuously refilled per spec
// §4.9's algorithm: "tokens = min(maxTokens, tokens + elapsedSec*refillRate)".
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// refill advances the bucket to now and returns the refilled token count,
// without consuming anything.
func (b *bucket) refill(now time.Time, maxTokens, refillRate float64) float64 {
	if b.lastRefill.IsZero() {
		b.tokens = maxTokens
		b.lastRefill = now
		return b.tokens
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = minF(maxTokens, b.tokens+elapsed*refillRate)
		b.lastRefill = now
	}
	return b.tokens
}

// tryConsume refills then consumes one token if available, returning
// whether the consume succeeded and the retryAfter duration spec §4.9
// defines as "(1 - tokens) / refillRate" when tokens < 1.
func (b *bucket) tryConsume(now time.Time, maxTokens, refillRate float64) (bool, time.Duration) {
	tokens := b.refill(now, maxTokens, refillRate)
	if tokens >= 1 {
		b.tokens = tokens - 1
		return true, 0
	}
	if refillRate <= 0 {
		return false, 0
	}
	retryAfter := time.Duration((1 - tokens) / refillRate * float64(time.Second))
	return false, retryAfter
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
