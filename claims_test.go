package tenauth

import (
	"errors"
	"testing"
	"time"
)

func testClaims() map[string]any {
	now := time.Now().Unix()
	return map[string]any{
		"sub":         "u-1",
		"tenant_id":   "t-acme",
		"authorities": []any{"ROLE_SYSTEM_ADMIN", "ROLE_BILLING"},
		"scope":       "openid profile",
		"jti":         "tok-1",
		"iat":         float64(now),
		"exp":         float64(now + 300),
	}
}

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	c, err := NewConverter(DefaultClaimsMapping())
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	return c
}

func TestConvertWellFormedClaims(t *testing.T) {
	c := newTestConverter(t)

	p, err := c.Convert(testClaims())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if p.SubjectID != "u-1" || p.TenantID != "t-acme" || p.TokenID != "tok-1" {
		t.Fatalf("identity mismatch: %+v", p)
	}
	if len(p.Authorities) != 2 || p.Authorities[0] != "ROLE_SYSTEM_ADMIN" {
		t.Fatalf("authorities mismatch: %v", p.Authorities)
	}
	if len(p.Scopes) != 2 || p.Scopes[0] != "openid" {
		t.Fatalf("scopes mismatch: %v", p.Scopes)
	}
	if p.ExpiresAt == 0 {
		t.Fatal("expiry not mapped")
	}
}

func TestConvertAppliesAuthorityPrefix(t *testing.T) {
	c := newTestConverter(t)

	claims := testClaims()
	claims["authorities"] = []any{"SYSTEM_ADMIN", "ROLE_BILLING", "  "}

	p, err := c.Convert(claims)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(p.Authorities) != 2 {
		t.Fatalf("blank entries must be dropped: %v", p.Authorities)
	}
	if p.Authorities[0] != "ROLE_SYSTEM_ADMIN" || p.Authorities[1] != "ROLE_BILLING" {
		t.Fatalf("prefix normalization failed: %v", p.Authorities)
	}
}

func TestConvertMissingTenant(t *testing.T) {
	c := newTestConverter(t)

	claims := testClaims()
	delete(claims, "tenant_id")
	if _, err := c.Convert(claims); !errors.Is(err, ErrMissingTenant) {
		t.Fatalf("absent tenant: got %v, want ErrMissingTenant", err)
	}

	claims = testClaims()
	claims["tenant_id"] = "   "
	if _, err := c.Convert(claims); !errors.Is(err, ErrMissingTenant) {
		t.Fatalf("blank tenant: got %v, want ErrMissingTenant", err)
	}

	claims = testClaims()
	claims["tenant_id"] = 42
	if _, err := c.Convert(claims); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("non-string tenant: got %v, want ErrMalformedClaims", err)
	}
}

func TestConvertMalformedAuthorities(t *testing.T) {
	c := newTestConverter(t)

	cases := []struct {
		name  string
		value any
		drop  bool
	}{
		{"absent", nil, true},
		{"string not array", "ROLE_ADMIN", false},
		{"numeric entries", []any{1, 2}, false},
		{"object", map[string]any{"role": "ADMIN"}, false},
	}

	for _, tc := range cases {
		claims := testClaims()
		if tc.drop {
			delete(claims, "authorities")
		} else {
			claims["authorities"] = tc.value
		}
		if _, err := c.Convert(claims); !errors.Is(err, ErrMalformedClaims) {
			t.Fatalf("%s: got %v, want ErrMalformedClaims", tc.name, err)
		}
	}
}

func TestConvertScopeOnlyTokenIsRejected(t *testing.T) {
	// A token minted by an issuer that puts roles in "scope" has no
	// authorities claim at all. It must fail conversion, not silently
	// produce an authority-less principal.
	c := newTestConverter(t)

	claims := testClaims()
	delete(claims, "authorities")
	claims["scope"] = "ROLE_SYSTEM_ADMIN"

	if _, err := c.Convert(claims); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("got %v, want ErrMalformedClaims", err)
	}
}

func TestConvertMissingExpiry(t *testing.T) {
	c := newTestConverter(t)

	claims := testClaims()
	delete(claims, "exp")
	if _, err := c.Convert(claims); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("got %v, want ErrMalformedClaims", err)
	}
}

func TestConvertArrayScopes(t *testing.T) {
	c := newTestConverter(t)

	claims := testClaims()
	claims["scope"] = []any{"openid", "email"}

	p, err := c.Convert(claims)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(p.Scopes) != 2 || p.Scopes[1] != "email" {
		t.Fatalf("scopes mismatch: %v", p.Scopes)
	}
}

func TestClaimsMappingValidation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*ClaimsMapping)
	}{
		{"empty subject", func(m *ClaimsMapping) { m.SubjectClaim = "" }},
		{"empty tenant", func(m *ClaimsMapping) { m.TenantClaim = " " }},
		{"empty authorities", func(m *ClaimsMapping) { m.AuthoritiesClaim = "" }},
		{"scope as authorities", func(m *ClaimsMapping) { m.AuthoritiesClaim = "scope" }},
		{"scp as authorities", func(m *ClaimsMapping) { m.AuthoritiesClaim = "scp" }},
		{"duplicate claim names", func(m *ClaimsMapping) {
			m.AuthoritiesClaim = "roles"
			m.ScopeClaim = "roles"
		}},
	}

	for _, tc := range cases {
		m := DefaultClaimsMapping()
		tc.mut(&m)
		if err := m.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if _, err := NewConverter(m); err == nil {
			t.Fatalf("%s: NewConverter accepted invalid mapping", tc.name)
		}
	}

	if err := DefaultClaimsMapping().Validate(); err != nil {
		t.Fatalf("default mapping must validate: %v", err)
	}
}
