package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds token-endpoint throttle tuning parameters.
type Config struct {
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxGrantAttempts         int
	GrantCooldown            time.Duration
}

// Limiter enforces per-identifier and per-IP limits on token grant
// attempts using fixed-window Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a grant [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckGrant checks whether the identifier+IP pair is within the grant
// attempt budget. Returns ErrRateLimited when the window is exhausted.
func (l *Limiter) CheckGrant(ctx context.Context, identifier, ip string) error {
	if l.config.EnableIdentifierThrottle && identifier != "" {
		if err := l.checkCounter(ctx, grantIdentifierKey(identifier), l.config.MaxGrantAttempts); err != nil {
			return err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, grantIPKey(ip), l.config.MaxGrantAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementGrant records a failed grant attempt for the identifier+IP
// pair. Both counters are charged before the limit decision, so an
// exhausted identifier never lets its IP window undercount.
func (l *Limiter) IncrementGrant(ctx context.Context, identifier, ip string) error {
	limited := false

	if l.config.EnableIdentifierThrottle && identifier != "" {
		count, err := l.incrementWithTTL(ctx, grantIdentifierKey(identifier), l.config.GrantCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxGrantAttempts) {
			limited = true
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err := l.incrementWithTTL(ctx, grantIPKey(ip), l.config.GrantCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxGrantAttempts) {
			limited = true
		}
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetGrant clears the failed-grant counters for the identifier+IP pair.
// Called after a successful grant.
func (l *Limiter) ResetGrant(ctx context.Context, identifier, ip string) error {
	var keys []string
	if l.config.EnableIdentifierThrottle && identifier != "" {
		keys = append(keys, grantIdentifierKey(identifier))
	}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, grantIPKey(ip))
	}
	if len(keys) == 0 {
		return nil
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// GetGrantAttempts returns the current attempt counter for an identifier.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetGrantAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, grantIdentifierKey(identifier)).Int64()
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

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func grantIdentifierKey(identifier string) string {
	return "ta:rl:grant:id:" + identifier
}

func grantIPKey(ip string) string {
	return "ta:rl:grant:ip:" + ip
}
