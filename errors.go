package tenauth

import "errors"

var (
	// ErrInvalidCredentials is returned by the password grant when the
	// username/password pair does not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidClient is returned when client_id/client_secret do not
	// identify a registered client.
	ErrInvalidClient = errors.New("invalid client")
	// ErrExpiredGrant is returned when an authorization code is missing,
	// already consumed, or past its lifetime at exchange.
	ErrExpiredGrant = errors.New("authorization grant expired")
	// ErrMalformedClaims is returned by the claims converter when the
	// authorities claim is absent, not an array, or carries non-string
	// entries. Never downgraded to a default-allow.
	ErrMalformedClaims = errors.New("malformed token claims")
	// ErrMissingTenant is returned by the claims converter when the token
	// carries no tenant claim.
	ErrMissingTenant = errors.New("missing tenant claim")
	// ErrUnauthenticated is returned for missing, unverifiable, or expired
	// tokens. Authentication failures are reported before any policy
	// lookup happens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when a valid principal lacks every required
	// role for the route, or when no policy covers the route (fail-closed).
	ErrForbidden = errors.New("forbidden")
	// ErrGrantRateLimited is returned when the token endpoint throttle for
	// an identifier or IP is exhausted.
	ErrGrantRateLimited = errors.New("token grant rate limited")
	// ErrEngineNotReady signals use of an Engine that was not built through
	// Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
