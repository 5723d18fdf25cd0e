package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arlox-io/tenauth/principal"
)

var (
	// ErrMiss is returned when no live entry exists for a fingerprint.
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("cache redis unavailable")
)

// Config tunes the verification cache.
type Config struct {
	// Prefix namespaces all cache keys.
	Prefix string
	// SweepInterval enables the background sweeper when > 0. Redis TTLs
	// already expire entries lazily; the sweeper eagerly reclaims entries
	// whose principal expired before its Redis TTL fired.
	SweepInterval time.Duration
	// SweepBatchSize bounds one SCAN page per sweep tick.
	SweepBatchSize int
}

// Store is a Redis-backed cache of verified principals, keyed by token
// fingerprint. It is a pure performance layer: every entry it serves was
// produced by full verification, entries never outlive the token's
// expiry, and any read anomaly degrades to a miss.
type Store struct {
	redis  redis.UniversalClient
	config Config

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Store and starts the background sweeper when configured.
func New(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "ta"
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 256
	}

	s := &Store{
		redis:  redisClient,
		config: cfg,
		done:   make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}

	return s
}

func (s *Store) key(fingerprint string) string {
	return s.config.Prefix + ":tc:" + fingerprint
}

// Get returns the cached principal for a token fingerprint. Expired or
// corrupt entries are deleted on read and reported as a miss, so callers
// always fall back to full verification.
func (s *Store) Get(ctx context.Context, fingerprint string) (principal.Principal, error) {
	var p principal.Principal

	data, err := s.redis.Get(ctx, s.key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return p, ErrMiss
		}
		return p, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p, err = principal.Decode(data)
	if err != nil {
		_ = s.redis.Del(ctx, s.key(fingerprint)).Err()
		return principal.Principal{}, ErrMiss
	}

	if p.ExpiredAt(time.Now()) {
		_ = s.redis.Del(ctx, s.key(fingerprint)).Err()
		return principal.Principal{}, ErrMiss
	}

	return p, nil
}

// Put stores a verified principal under the token fingerprint. The Redis
// TTL is capped at the principal's remaining lifetime; principals at or
// past expiry are never written.
func (s *Store) Put(ctx context.Context, fingerprint string, p principal.Principal) error {
	ttl := time.Until(time.Unix(p.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}

	data, err := principal.Encode(p)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(fingerprint), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Invalidate removes the entry for a fingerprint, if present.
func (s *Store) Invalidate(ctx context.Context, fingerprint string) error {
	if err := s.redis.Del(ctx, s.key(fingerprint)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping reports Redis reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close stops the background sweeper. It does not close the Redis client,
// which the caller owns.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(context.Background())
		case <-s.done:
			return
		}
	}
}

// sweepOnce scans one batch of cache keys and deletes entries whose
// principal has expired. Errors are swallowed: sweeping is advisory and
// the lazy read path already guarantees correctness.
func (s *Store) sweepOnce(ctx context.Context) {
	pattern := s.config.Prefix + ":tc:*"

	iter := s.redis.Scan(ctx, 0, pattern, int64(s.config.SweepBatchSize)).Iterator()
	now := time.Now()
	seen := 0

	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		p, err := principal.Decode(data)
		if err != nil || p.ExpiredAt(now) {
			_ = s.redis.Del(ctx, key).Err()
		}

		seen++
		if seen >= s.config.SweepBatchSize {
			return
		}
	}
}
