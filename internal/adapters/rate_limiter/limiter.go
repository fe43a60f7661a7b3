// Package rate_limiter throttles compute requests per routine.
package rate_limiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"golang.org/x/time/rate"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type rateLimiter struct {
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter keeps one token bucket per key.
func NewRateLimiter(config domain.RateLimitConfig, logger *slog.Logger) ports.RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = domain.DefaultComputeConfig().RateLimit.RequestsPerSecond
	}
	burst := config.BurstSize
	if burst <= 0 {
		burst = max(1, int(rps))
	}

	return &rateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		logger:   logger.With("component", "rate-limiter"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *rateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
		rl.logger.Debug("created bucket", "key", key, "rps", float64(rl.limit), "burst", rl.burst)
	}
	return l
}

func (rl *rateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// Wait blocks until key has a token or ctx is done. A wait that could never
// finish before the ctx deadline fails immediately.
func (rl *rateLimiter) Wait(ctx context.Context, key string) error {
	if err := rl.bucket(key).Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Join(ErrRateLimitExceeded, err)
	}
	return nil
}
