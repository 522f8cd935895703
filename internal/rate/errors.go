package rate

import "errors"

var (
	// ErrRateLimited is returned once a window's count passes its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
