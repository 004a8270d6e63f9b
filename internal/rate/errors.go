package rate

import "errors"

var (
	// ErrRateLimited is returned by Take once a key exhausts its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
