package tenauth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arlox-io/tenauth/principal"
)

// ClaimsMapping declares, claim by claim, where the converter reads
// identity data from a verified token payload. There are no defaults at
// conversion time and no fallback claim names: if the configured
// authorities claim is absent from a token, conversion fails.
type ClaimsMapping struct {
	// SubjectClaim carries the stable user identifier. Usually "sub".
	SubjectClaim string
	// TenantClaim carries the tenant identifier. A token without this
	// claim is rejected with ErrMissingTenant.
	TenantClaim string
	// AuthoritiesClaim carries the role array. Configuring "scope" here
	// is rejected at validation time: OAuth scopes and role authorities
	// are different vocabularies and conflating them is how tokens end
	// up granting nothing (or everything).
	AuthoritiesClaim string
	// ScopeClaim optionally carries OAuth scopes, either as a
	// space-delimited string or an array. Scopes are informational and
	// never participate in route decisions.
	ScopeClaim string
	// AuthorityPrefix is prepended to any authority value that does not
	// already carry it, so "SYSTEM_ADMIN" and "ROLE_SYSTEM_ADMIN"
	// normalize to the same principal authority.
	AuthorityPrefix string
}

// DefaultClaimsMapping returns the mapping tenauth issues tokens with:
// sub / tenant_id / authorities / scope, with the ROLE_ prefix.
func DefaultClaimsMapping() ClaimsMapping {
	return ClaimsMapping{
		SubjectClaim:     "sub",
		TenantClaim:      "tenant_id",
		AuthoritiesClaim: "authorities",
		ScopeClaim:       "scope",
		AuthorityPrefix:  "ROLE_",
	}
}

// Validate rejects mappings that would fail or mislead at request time.
// It runs once at Build; conversion itself never re-validates.
func (m ClaimsMapping) Validate() error {
	if strings.TrimSpace(m.SubjectClaim) == "" {
		return fmt.Errorf("claims mapping: subject claim name is empty")
	}
	if strings.TrimSpace(m.TenantClaim) == "" {
		return fmt.Errorf("claims mapping: tenant claim name is empty")
	}
	if strings.TrimSpace(m.AuthoritiesClaim) == "" {
		return fmt.Errorf("claims mapping: authorities claim name is empty")
	}
	if m.AuthoritiesClaim == "scope" || m.AuthoritiesClaim == "scp" {
		return fmt.Errorf("claims mapping: %q cannot be the authorities claim; scopes are not role authorities", m.AuthoritiesClaim)
	}
	if m.ScopeClaim != "" && m.ScopeClaim == m.AuthoritiesClaim {
		return fmt.Errorf("claims mapping: scope claim and authorities claim are both %q", m.ScopeClaim)
	}
	return nil
}

// Converter turns a verified token payload into a Principal according to
// a validated ClaimsMapping. It is stateless and safe for concurrent use.
type Converter struct {
	mapping ClaimsMapping
}

// NewConverter validates the mapping and returns a Converter. An invalid
// mapping is a configuration error, reported here rather than per token.
func NewConverter(m ClaimsMapping) (*Converter, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Converter{mapping: m}, nil
}

// Convert maps a verified claim set into a Principal. Claims are never
// trusted structurally: every field is type-checked and a malformed or
// absent authorities claim fails the conversion instead of producing a
// principal with no authorities.
func (c *Converter) Convert(claims map[string]any) (principal.Principal, error) {
	var p principal.Principal

	sub, err := stringClaim(claims, c.mapping.SubjectClaim)
	if err != nil {
		return p, err
	}
	p.SubjectID = sub

	tenant, ok := claims[c.mapping.TenantClaim]
	if !ok {
		return p, fmt.Errorf("%w: claim %q absent", ErrMissingTenant, c.mapping.TenantClaim)
	}
	tenantStr, ok := tenant.(string)
	if !ok {
		return p, fmt.Errorf("%w: claim %q is %T, want string", ErrMalformedClaims, c.mapping.TenantClaim, tenant)
	}
	if strings.TrimSpace(tenantStr) == "" {
		return p, fmt.Errorf("%w: claim %q is blank", ErrMissingTenant, c.mapping.TenantClaim)
	}
	p.TenantID = tenantStr

	auths, err := c.authorities(claims)
	if err != nil {
		return p, err
	}
	p.Authorities = auths

	if c.mapping.ScopeClaim != "" {
		scopes, err := c.scopes(claims)
		if err != nil {
			return p, err
		}
		p.Scopes = scopes
	}

	if jti, ok := claims["jti"].(string); ok {
		p.TokenID = jti
	}

	iat, err := numericClaim(claims, "iat")
	if err != nil {
		return p, err
	}
	p.IssuedAt = iat

	exp, err := numericClaim(claims, "exp")
	if err != nil {
		return p, err
	}
	if exp == 0 {
		return p, fmt.Errorf("%w: exp claim absent", ErrMalformedClaims)
	}
	p.ExpiresAt = exp

	return p, nil
}

func (c *Converter) authorities(claims map[string]any) ([]string, error) {
	raw, ok := claims[c.mapping.AuthoritiesClaim]
	if !ok {
		return nil, fmt.Errorf("%w: authorities claim %q absent", ErrMalformedClaims, c.mapping.AuthoritiesClaim)
	}

	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case []string:
		entries = make([]any, len(v))
		for i, s := range v {
			entries[i] = s
		}
	default:
		return nil, fmt.Errorf("%w: authorities claim %q is %T, want array", ErrMalformedClaims, c.mapping.AuthoritiesClaim, raw)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("%w: authorities claim %q has %T entry, want string", ErrMalformedClaims, c.mapping.AuthoritiesClaim, e)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if c.mapping.AuthorityPrefix != "" && !strings.HasPrefix(s, c.mapping.AuthorityPrefix) {
			s = c.mapping.AuthorityPrefix + s
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Converter) scopes(claims map[string]any) ([]string, error) {
	raw, ok := claims[c.mapping.ScopeClaim]
	if !ok {
		return nil, nil
	}

	switch v := raw.(type) {
	case string:
		return strings.Fields(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: scope claim %q has %T entry, want string", ErrMalformedClaims, c.mapping.ScopeClaim, e)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return append([]string(nil), v...), nil
	default:
		return nil, fmt.Errorf("%w: scope claim %q is %T", ErrMalformedClaims, c.mapping.ScopeClaim, raw)
	}
}

func stringClaim(claims map[string]any, name string) (string, error) {
	raw, ok := claims[name]
	if !ok {
		return "", fmt.Errorf("%w: claim %q absent", ErrMalformedClaims, name)
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: claim %q is not a non-empty string", ErrMalformedClaims, name)
	}
	return s, nil
}

// numericClaim reads a Unix-seconds claim. JSON decoding may surface
// numbers as float64 or json.Number depending on the parser.
func numericClaim(claims map[string]any, name string) (int64, error) {
	raw, ok := claims[name]
	if !ok {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: claim %q is not numeric", ErrMalformedClaims, name)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%w: claim %q is %T, want number", ErrMalformedClaims, name, raw)
	}
}
