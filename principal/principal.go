package principal

import "time"

// Principal is the validated identity derived from an access token: the
// subject, the tenant it is scoped to, and the authority set used for
// access decisions.
//
// Principal instances are immutable after conversion. TenantID is always
// non-empty for an authenticated principal; the claims converter rejects
// tokens without a tenant claim before a Principal is ever constructed.
type Principal struct {
	SubjectID string
	TenantID  string
	TokenID   string

	Authorities []string
	Scopes      []string

	IssuedAt  int64
	ExpiresAt int64
}

// ExpiredAt reports whether the principal's token lifetime has passed at
// the given instant. ExpiresAt of zero means the token carried no expiry
// and is treated as already expired (fail-closed).
func (p *Principal) ExpiredAt(now time.Time) bool {
	if p == nil || p.ExpiresAt <= 0 {
		return true
	}
	return now.Unix() >= p.ExpiresAt
}

// HasAnyAuthority reports whether the principal holds at least one of the
// required authorities. An empty required set never matches.
func (p *Principal) HasAnyAuthority(required []string) bool {
	if p == nil || len(required) == 0 {
		return false
	}
	for _, want := range required {
		for _, have := range p.Authorities {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy. Cache lookups hand out clones so callers can
// never mutate a shared cached principal.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.Authorities = append([]string(nil), p.Authorities...)
	out.Scopes = append([]string(nil), p.Scopes...)
	return &out
}
