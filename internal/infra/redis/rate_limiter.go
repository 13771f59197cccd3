package redis

import (
	"context"
	"fmt"
	"time"

	"quickcommand-bridge/internal/domain/ports/repository"
)

var _ repository.RateLimiter = (*RateLimiter)(nil)

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter is a fixed-window counter: INCR, with EXPIRE set on the first hit.
type RateLimiter struct {
	client counter
}

func NewRateLimiter(client counter) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit against key and reports whether it is within limit for
// the current window. A non-positive limit disables the check.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	// first hit opens the window
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	return count <= int64(limit), nil
}

func UserCommandKey(platform, userID, command string) string {
	return fmt.Sprintf("rate_limit:%s:%s:%s", platform, userID, command)
}
