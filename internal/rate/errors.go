package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter reaches MaxAttempts.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
