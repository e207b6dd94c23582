package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning parameters.
type Config struct {
	// Prefix namespaces every counter key.
	Prefix string
	// MaxAttempts is the number of failed sign-ins allowed per window.
	MaxAttempts int
	// Window is how long a counter lives after its first failure.
	Window time.Duration
	// PerIP additionally counts failures per client address.
	PerIP bool
}

// Limiter counts failed password sign-ins in Redis fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when the email, or the ip when PerIP is set,
// has used up its failure budget for the current window.
func (l *Limiter) Check(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, l.emailKey(email)); err != nil {
		return err
	}
	if l.config.PerIP && ip != "" {
		return l.checkCounter(ctx, l.ipKey(ip))
	}
	return nil
}

// RecordFailure counts one failed sign-in. It returns ErrRateLimited when
// this failure exhausted the budget.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.emailKey(email))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxAttempts)

	if l.config.PerIP && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxAttempts)
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the email counter after a successful sign-in. The ip counter
// is left alone so one good account cannot launder a sprayed address.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, l.emailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for email. Missing keys return
// zero.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// emailKey hashes the normalized email so raw addresses never appear in
// Redis keys.
func (l *Limiter) emailKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return l.config.Prefix + ":lt:" + hex.EncodeToString(sum[:16])
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":lti:" + ip
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
