package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, cfg), mr
}

func defaultLimiterConfig() Config {
	return Config{
		EnableIPThrottle:         true,
		EnableIdentifierThrottle: true,
		MaxGrantAttempts:         3,
		GrantCooldown:            time.Minute,
	}
}

func TestCheckGrantAllowsFreshIdentifier(t *testing.T) {
	l, _ := newTestLimiter(t, defaultLimiterConfig())

	if err := l.CheckGrant(context.Background(), "alice", "10.0.0.1"); err != nil {
		t.Fatalf("fresh identifier throttled: %v", err)
	}
}

func TestIncrementGrantExhaustsBudget(t *testing.T) {
	l, _ := newTestLimiter(t, defaultLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.IncrementGrant(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := l.IncrementGrant(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if err := l.CheckGrant(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("CheckGrant after exhaustion: got %v, want ErrRateLimited", err)
	}
}

func TestIPThrottleIsIndependentOfIdentifier(t *testing.T) {
	l, _ := newTestLimiter(t, defaultLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = l.IncrementGrant(ctx, "alice", "10.0.0.1")
	}

	// Same IP, different identifier: still throttled via IP counter.
	if err := l.CheckGrant(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	// Different IP and identifier: clean slate.
	if err := l.CheckGrant(ctx, "bob", "10.0.0.2"); err != nil {
		t.Fatalf("unrelated pair throttled: %v", err)
	}
}

func TestIncrementGrantChargesIPAfterIdentifierExhausted(t *testing.T) {
	l, mr := newTestLimiter(t, defaultLimiterConfig())
	ctx := context.Background()

	// Attempts past the identifier budget must still land on the IP
	// counter, one for one.
	for i := 0; i < 6; i++ {
		_ = l.IncrementGrant(ctx, "alice", "10.0.0.1")
	}

	got, err := mr.Get("ta:rl:grant:ip:10.0.0.1")
	if err != nil {
		t.Fatalf("ip counter missing: %v", err)
	}
	if got != "6" {
		t.Fatalf("ip counter = %s, want 6", got)
	}
}

func TestResetGrantClearsCounters(t *testing.T) {
	l, _ := newTestLimiter(t, defaultLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = l.IncrementGrant(ctx, "alice", "10.0.0.1")
	}
	if err := l.ResetGrant(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("ResetGrant: %v", err)
	}
	if err := l.CheckGrant(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("counter survived reset: %v", err)
	}
	if n, err := l.GetGrantAttempts(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("GetGrantAttempts = %d, %v", n, err)
	}
}

func TestWindowExpiryReopensBudget(t *testing.T) {
	l, mr := newTestLimiter(t, defaultLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = l.IncrementGrant(ctx, "alice", "")
	}
	if err := l.CheckGrant(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.CheckGrant(ctx, "alice", ""); err != nil {
		t.Fatalf("budget not reopened after window: %v", err)
	}
}

func TestDisabledThrottlesNeverLimit(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxGrantAttempts: 1, GrantCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.IncrementGrant(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatalf("disabled throttle limited: %v", err)
		}
	}
}
