package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a set of fixed-window counters sharing one key prefix.
type Window struct {
	redis  redis.UniversalClient
	prefix string
}

// NewWindow creates a Window whose keys all start with prefix.
func NewWindow(rdb redis.UniversalClient, prefix string) *Window {
	return &Window{redis: rdb, prefix: prefix}
}

// Key joins parts under the window prefix.
func (w *Window) Key(parts ...string) string {
	k := w.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Hit counts one event on key and returns ErrRateLimited when the count
// exceeds limit within the window.
func (w *Window) Hit(ctx context.Context, key string, limit int, window time.Duration) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if limit > 0 && count > int64(limit) {
		return count, ErrRateLimited
	}
	return count, nil
}

// Peek returns ErrRateLimited when key already reached limit, without counting.
func (w *Window) Peek(ctx context.Context, key string, limit int) (int64, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if limit > 0 && count >= int64(limit) {
		return count, ErrRateLimited
	}
	return count, nil
}

// Reset deletes the given counters.
func (w *Window) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
