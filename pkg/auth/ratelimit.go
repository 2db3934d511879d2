package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter is a token bucket rate limiter keeping one bucket per
// subject and tier in memory. Each bucket refills at the tier's rate and
// holds up to a minute's worth of requests.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
// A tier (or default) with zero requests per minute is unlimited.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		buckets:    make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token from the identity's bucket.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := tierOf(identity)

	rpm := l.defaultRPM
	if tc, ok := l.tiers[tier]; ok {
		rpm = tc.RequestsPerMinute
	}
	if rpm <= 0 {
		return nil
	}

	if !l.bucket(identity.Subject+":"+tier, rpm).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *InProcessLimiter) bucket(key string, rpm int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
		l.buckets[key] = b
	}
	return b
}

func tierOf(identity *Identity) string {
	if identity == nil || identity.ServiceTier == "" {
		return "default"
	}
	return identity.ServiceTier
}
