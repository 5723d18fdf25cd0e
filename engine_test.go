package tenauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/arlox-io/tenauth/jwt"
	"github.com/arlox-io/tenauth/password"
	"github.com/arlox-io/tenauth/policy"
)

type mapUserProvider struct {
	users map[string]UserRecord
}

func (p *mapUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	user, ok := p.users[identifier]
	if !ok {
		return UserRecord{}, errors.New("user not found")
	}
	return user, nil
}

type mapClientProvider struct {
	clients map[string]ClientRecord
}

func (p *mapClientProvider) GetClientByID(_ context.Context, clientID string) (ClientRecord, error) {
	client, ok := p.clients[clientID]
	if !ok {
		return ClientRecord{}, errors.New("client not found")
	}
	return client, nil
}

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func testPolicies(t *testing.T) *policy.Table {
	t.Helper()
	table, err := policy.NewTable([]policy.Rule{
		{Pattern: "/api/admin", RequiredRoles: []string{"ROLE_SYSTEM_ADMIN"}},
		{Pattern: "/api/billing", RequiredRoles: []string{"ROLE_BILLING", "ROLE_SYSTEM_ADMIN"}},
		{Pattern: "/api/billing/admin", RequiredRoles: []string{"ROLE_SYSTEM_ADMIN"}},
		{Pattern: "/api/reports", RequiredRoles: []string{"ROLE_ANALYST"}},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

// hashPassword uses minimum-cost argon2 parameters to keep tests fast.
func hashPassword(t *testing.T, plaintext string) string {
	t.Helper()
	h, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := h.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}

func testEngineConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = testSigningKey
	cfg.JWT.Issuer = "tenauth-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type engineFixture struct {
	engine *Engine
	redis  *miniredis.Miniredis
	config Config
}

func newTestEngine(t *testing.T, mutate func(*Config), opts func(*Builder)) *engineFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := &mapUserProvider{users: map[string]UserRecord{
		"alice": {
			UserID:       "u-alice",
			Identifier:   "alice",
			TenantID:     "t-acme",
			PasswordHash: hashPassword(t, "alice-password-1"),
			Authorities:  []string{"SYSTEM_ADMIN"},
			Scopes:       []string{"openid"},
		},
		"bob": {
			UserID:       "u-bob",
			Identifier:   "bob",
			TenantID:     "t-globex",
			PasswordHash: hashPassword(t, "bob-password-22"),
			Authorities:  []string{"ROLE_BILLING"},
		},
		"mallory": {
			UserID:       "u-mallory",
			Identifier:   "mallory",
			TenantID:     "",
			PasswordHash: hashPassword(t, "mallory-pass-3"),
			Authorities:  []string{"ROLE_BILLING"},
		},
	}}

	clients := &mapClientProvider{clients: map[string]ClientRecord{
		"portal": {ClientID: "portal", SecretHash: hashPassword(t, "portal-secret-9")},
	}}

	b := New().
		WithConfig(cfg).
		WithRedis(client).
		WithPolicies(testPolicies(t)).
		WithUserProvider(users).
		WithClientProvider(clients).
		WithMetricsEnabled(true)
	if opts != nil {
		opts(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, redis: mr, config: cfg}
}

// signerFor returns a jwt manager sharing the fixture's verification key,
// for crafting tokens the engine did not issue itself.
func (f *engineFixture) signerFor(t *testing.T, issuer string) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     f.config.JWT.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    testSigningKey,
		Issuer:        issuer,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestAuthorizeHappyPath(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "alice", "alice-password-1")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	p, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/admin")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if p.SubjectID != "u-alice" || p.TenantID != "t-acme" {
		t.Fatalf("principal mismatch: %+v", p)
	}
	if !p.HasAnyAuthority([]string{"ROLE_SYSTEM_ADMIN"}) {
		t.Fatalf("authority not canonicalized: %v", p.Authorities)
	}
}

func TestAuthorizeEmptyTokenUnauthenticated(t *testing.T) {
	f := newTestEngine(t, nil, nil)

	if _, err := f.engine.Authorize(context.Background(), "", "/api/admin"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("got %v, want ErrUnauthenticated", err)
	}
}

func TestAuthorizeGarbageTokenUnauthenticated(t *testing.T) {
	f := newTestEngine(t, nil, nil)

	if _, err := f.engine.Authorize(context.Background(), "not.a.token", "/api/admin"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("got %v, want ErrUnauthenticated", err)
	}
}

func TestAuthorizeExpiredTokenUnauthenticated(t *testing.T) {
	f := newTestEngine(t, nil, nil)

	signer := f.signerFor(t, "tenauth-test")
	token, _, err := signer.Mint(map[string]any{
		"sub":         "u-alice",
		"tenant_id":   "t-acme",
		"authorities": []string{"ROLE_SYSTEM_ADMIN"},
	}, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.engine.Authorize(context.Background(), token, "/api/admin"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("got %v, want ErrUnauthenticated", err)
	}
}

func TestAuthorizeScopeOnlyTokenIsAuthFailureNotForbidden(t *testing.T) {
	// Token from an issuer that put roles in "scope" and omitted the
	// authorities claim. It must fail as malformed, not as a policy
	// denial with an authority-less principal.
	f := newTestEngine(t, nil, nil)

	signer := f.signerFor(t, "tenauth-test")
	token, _, err := signer.Mint(map[string]any{
		"sub":       "u-alice",
		"tenant_id": "t-acme",
		"scope":     "ROLE_SYSTEM_ADMIN",
	}, time.Now())
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	_, err = f.engine.Authorize(context.Background(), token, "/api/admin")
	if !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("got %v, want ErrMalformedClaims", err)
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatal("malformed claims must not surface as a policy denial")
	}
}

func TestAuthorizeMissingTenantRejected(t *testing.T) {
	f := newTestEngine(t, nil, nil)

	signer := f.signerFor(t, "tenauth-test")
	token, _, err := signer.Mint(map[string]any{
		"sub":         "u-alice",
		"authorities": []string{"ROLE_SYSTEM_ADMIN"},
	}, time.Now())
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.engine.Authorize(context.Background(), token, "/api/admin"); !errors.Is(err, ErrMissingTenant) {
		t.Fatalf("got %v, want ErrMissingTenant", err)
	}
}

func TestAuthorizeForbiddenWithoutRequiredRole(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "bob", "bob-password-22")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	// bob has ROLE_BILLING: billing yes, admin no.
	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/billing"); err != nil {
		t.Fatalf("billing route: %v", err)
	}
	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/admin"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin route: got %v, want ErrForbidden", err)
	}
}

func TestAuthorizeUncoveredRouteFailsClosed(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "alice", "alice-password-1")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/internal/debug"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestAuthorizeLongestPrefixWins(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "bob", "bob-password-22")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	// /api/billing/invoices falls under /api/billing (ROLE_BILLING ok),
	// but /api/billing/admin has a more specific rule requiring
	// ROLE_SYSTEM_ADMIN.
	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/billing/invoices"); err != nil {
		t.Fatalf("general billing route: %v", err)
	}
	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/billing/admin"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("specific admin route: got %v, want ErrForbidden", err)
	}
}

func TestAuthorizeTenantComesFromTokenOnly(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	aliceResp, err := f.engine.PasswordGrant(ctx, "alice", "alice-password-1")
	if err != nil {
		t.Fatalf("PasswordGrant(alice): %v", err)
	}
	bobResp, err := f.engine.PasswordGrant(ctx, "bob", "bob-password-22")
	if err != nil {
		t.Fatalf("PasswordGrant(bob): %v", err)
	}

	alice, err := f.engine.Authorize(ctx, aliceResp.AccessToken, "/api/billing")
	if err != nil {
		t.Fatalf("Authorize(alice): %v", err)
	}
	bob, err := f.engine.Authorize(ctx, bobResp.AccessToken, "/api/billing")
	if err != nil {
		t.Fatalf("Authorize(bob): %v", err)
	}

	if alice.TenantID != "t-acme" || bob.TenantID != "t-globex" {
		t.Fatalf("tenants leaked across principals: %q vs %q", alice.TenantID, bob.TenantID)
	}
}

func TestAuthorizeCacheHitSecondCall(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "alice", "alice-password-1")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/admin"); err != nil {
		t.Fatalf("first Authorize: %v", err)
	}
	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/admin"); err != nil {
		t.Fatalf("second Authorize: %v", err)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricCacheMiss] == 0 || snap.Counters[MetricCacheHit] == 0 {
		t.Fatalf("expected one miss then one hit, got %+v", snap.Counters)
	}
}

func TestAuthorizeCacheDisabledSameDecisions(t *testing.T) {
	f := newTestEngine(t, func(c *Config) { c.Cache.Enabled = false }, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "bob", "bob-password-22")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/billing"); err != nil {
		t.Fatalf("allowed route: %v", err)
	}
	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/admin"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("denied route: got %v, want ErrForbidden", err)
	}
	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricCacheHit] != 0 {
		t.Fatal("cache metrics recorded with cache disabled")
	}
}

func TestAuthorizeRedisDownDegradesToVerification(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "alice", "alice-password-1")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	f.redis.Close()

	p, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/admin")
	if err != nil {
		t.Fatalf("Authorize with redis down: %v", err)
	}
	if p.TenantID != "t-acme" {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestReloadPoliciesSwapsDecisions(t *testing.T) {
	f := newTestEngine(t, nil, nil)
	ctx := context.Background()

	resp, err := f.engine.PasswordGrant(ctx, "bob", "bob-password-22")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}

	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/reports"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("before reload: got %v, want ErrForbidden", err)
	}

	wider, err := policy.NewTable([]policy.Rule{
		{Pattern: "/api/reports", RequiredRoles: []string{"ROLE_BILLING"}},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if err := f.engine.ReloadPolicies(wider); err != nil {
		t.Fatalf("ReloadPolicies: %v", err)
	}

	if _, err := f.engine.Authorize(ctx, resp.AccessToken, "/api/reports"); err != nil {
		t.Fatalf("after reload: %v", err)
	}

	if err := f.engine.ReloadPolicies(nil); err == nil {
		t.Fatal("nil table accepted")
	}
}

func TestBuildRejectsScopeAsAuthoritiesClaim(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testEngineConfig()
	cfg.Claims.AuthoritiesClaim = "scope"

	_, err = New().
		WithConfig(cfg).
		WithRedis(client).
		WithPolicies(testPolicies(t)).
		WithUserProvider(&mapUserProvider{}).
		Build()
	if err == nil {
		t.Fatal("Build accepted scope as authorities claim")
	}
}

func TestBuildRequiresCoreDependencies(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if _, err := New().WithConfig(testEngineConfig()).Build(); err == nil {
		t.Fatal("Build without redis accepted")
	}
	if _, err := New().WithConfig(testEngineConfig()).WithRedis(client).Build(); err == nil {
		t.Fatal("Build without policies accepted")
	}
	if _, err := New().WithConfig(testEngineConfig()).WithRedis(client).WithPolicies(testPolicies(t)).Build(); err == nil {
		t.Fatal("Build without user provider accepted")
	}

	b := New().WithConfig(testEngineConfig()).WithRedis(client).WithPolicies(testPolicies(t)).WithUserProvider(&mapUserProvider{})
	if _, err := b.Build(); err != nil {
		t.Fatalf("complete Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("builder reuse accepted")
	}
}
