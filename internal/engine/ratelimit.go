package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// RateLimiter throttles attested validation attempts per principal with a
// token bucket per address, so one noisy counterparty cannot starve the
// rest.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[common.Address]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained
// attempts with the given burst per principal.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[common.Address]*rate.Limiter),
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
	}
}

// DefaultRateLimiter returns a limiter at 5 attempts/second, burst 10.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(5, 10)
}

// Allow reports whether an attempt for the principal may proceed now.
// Never blocks.
func (r *RateLimiter) Allow(principal common.Address) bool {
	return r.bucket(principal).Allow()
}

// Wait blocks until an attempt is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context, principal common.Address) error {
	return r.bucket(principal).Wait(ctx)
}

func (r *RateLimiter) bucket(principal common.Address) *rate.Limiter {
	r.mu.RLock()
	b, ok := r.buckets[principal]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.buckets[principal]; ok {
		return b
	}
	b = rate.NewLimiter(r.limit, r.burst)
	r.buckets[principal] = b
	return b
}
