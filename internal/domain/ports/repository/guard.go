package repository

import (
	"context"
	"time"
)

// RateLimiter is the port for fixed-window request limiting keyed by caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Locker is the port for a best-effort distributed mutex.
// TryLock returns domain.ErrBusy when the key is already held.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
