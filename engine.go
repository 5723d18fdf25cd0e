package tenauth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arlox-io/tenauth/cache"
	internalaudit "github.com/arlox-io/tenauth/internal/audit"
	"github.com/arlox-io/tenauth/internal/rate"
	"github.com/arlox-io/tenauth/jwt"
	"github.com/arlox-io/tenauth/policy"
	"github.com/arlox-io/tenauth/principal"

	"github.com/arlox-io/tenauth/internal"
)

// Engine is the token authorization core: it issues access tokens,
// verifies them, converts claims to principals, and decides route access
// against the active policy table. Construct through [Builder.Build];
// all methods are then safe for concurrent use.
type Engine struct {
	config    Config
	converter *Converter
	policies  atomic.Pointer[policy.Table]

	jwtManager   *jwt.Manager
	cache        *cache.Store
	grantStore   *grantStore
	rateLimiter  *rate.Limiter
	passwordHash passwordHasher

	userProvider   UserProvider
	clientProvider ClientProvider

	audit   *internalaudit.Dispatcher
	metrics *Metrics
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Authorize verifies the bearer token, converts its claims to a
// Principal, and checks the principal's authorities against the policy
// rule covering route.
//
// The decision order is fixed: authentication failures (missing,
// unverifiable, expired, or malformed tokens) are reported before any
// policy lookup, and a route with no covering rule is denied. Tenant
// identity comes only from the returned principal's claims.
func (e *Engine) Authorize(ctx context.Context, token, route string) (Principal, error) {
	var p Principal

	if e == nil || e.jwtManager == nil {
		return p, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}()

	if token == "" {
		e.metrics.Inc(MetricAuthzUnauthenticated)
		e.emitAuthzAudit(ctx, p, route, auditAuthzUnauthenticated, "empty token")
		return p, fmt.Errorf("%w: empty token", ErrUnauthenticated)
	}

	fingerprint := internal.TokenFingerprint(token)

	cached, hit := e.cacheGet(ctx, fingerprint)
	if hit {
		p = cached
	} else {
		verified, err := e.verify(ctx, token)
		if err != nil {
			e.metrics.Inc(MetricAuthzUnauthenticated)
			e.emitAuthzAudit(ctx, verified, route, auditAuthzUnauthenticated, err.Error())
			return Principal{}, err
		}
		p = verified
		e.cachePut(ctx, fingerprint, p)
	}

	// Cached entries are lazily evicted, but the expiry re-check keeps a
	// clock-edge entry from authorizing a stale token.
	if p.ExpiredAt(time.Now()) {
		e.metrics.Inc(MetricAuthzUnauthenticated)
		e.emitAuthzAudit(ctx, p, route, auditAuthzUnauthenticated, "token expired")
		return Principal{}, fmt.Errorf("%w: token expired", ErrUnauthenticated)
	}

	rule, covered := e.policies.Load().Match(route)
	if !covered {
		e.metrics.Inc(MetricAuthzForbidden)
		e.emitAuthzAudit(ctx, p, route, auditAuthzForbidden, "no policy covers route")
		return Principal{}, fmt.Errorf("%w: no policy covers route", ErrForbidden)
	}

	if !p.HasAnyAuthority(rule.RequiredRoles) {
		e.metrics.Inc(MetricAuthzForbidden)
		e.emitAuthzAudit(ctx, p, route, auditAuthzForbidden, "missing required authority")
		return Principal{}, fmt.Errorf("%w: missing required authority", ErrForbidden)
	}

	e.metrics.Inc(MetricAuthzAllowed)
	e.emitAllowedAudit(ctx, p, route)
	return p, nil
}

// verify runs full verification: signature and registered-claim checks,
// then claim conversion. All failures surface as sentinel errors the
// transport layer maps to 401.
func (e *Engine) verify(ctx context.Context, token string) (Principal, error) {
	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	p, err := e.converter.Convert(claims)
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (e *Engine) cacheGet(ctx context.Context, fingerprint string) (Principal, bool) {
	if e.cache == nil {
		return Principal{}, false
	}

	p, err := e.cache.Get(ctx, fingerprint)
	if err != nil {
		// Both misses and Redis outages degrade to full verification.
		e.metrics.Inc(MetricCacheMiss)
		return Principal{}, false
	}

	e.metrics.Inc(MetricCacheHit)
	return p, true
}

func (e *Engine) cachePut(ctx context.Context, fingerprint string, p Principal) {
	if e.cache == nil {
		return
	}
	_ = e.cache.Put(ctx, fingerprint, p)
}

// ReloadPolicies atomically swaps the active policy table. In-flight
// decisions finish against the table they started with.
func (e *Engine) ReloadPolicies(table *policy.Table) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if table == nil || table.Len() == 0 {
		return errors.New("policy table required")
	}
	e.policies.Store(table)
	return nil
}

// Policies returns the active policy table.
func (e *Engine) Policies() *policy.Table {
	if e == nil {
		return nil
	}
	return e.policies.Load()
}

// MetricsSnapshot returns a point-in-time copy of engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher discarded
// because its buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Ping reports backing-store reachability for health checks. With the
// cache disabled there is no Redis dependency on the hot path and Ping
// succeeds vacuously.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.cache == nil {
		return nil
	}
	return e.cache.Ping(ctx)
}

// Close flushes the audit dispatcher and stops the cache sweeper. The
// Redis client is owned by the caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	if e.cache != nil {
		e.cache.Close()
	}
}

func (e *Engine) emitAuthzAudit(ctx context.Context, p principal.Principal, route, eventType, reason string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		SubjectID: p.SubjectID,
		TenantID:  p.TenantID,
		TokenID:   p.TokenID,
		Route:     route,
		IP:        clientIPFromContext(ctx),
		Success:   false,
		Error:     reason,
	})
}

func (e *Engine) emitAllowedAudit(ctx context.Context, p principal.Principal, route string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditAuthzAllowed,
		SubjectID: p.SubjectID,
		TenantID:  p.TenantID,
		TokenID:   p.TokenID,
		Route:     route,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})
}
