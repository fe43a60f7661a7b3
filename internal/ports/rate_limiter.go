package ports

import "context"

type RateLimiter interface {
	Allow(key string) bool
	Wait(ctx context.Context, key string) error
}
