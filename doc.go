// Package tenauth provides a tenant-scoped token authorization engine:
// OAuth2-style token issuance (password and authorization-code grants),
// claims-to-principal conversion with an explicit authorities mapping,
// a fail-closed route policy decision engine, and a Redis-backed token
// verification cache.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tenauth is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenResponse, MetricsSnapshot, etc.). Internal
// coordination — grant-code encoding, rate limiting, audit dispatch,
// metric counters — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, signing keys, or cache encoding details in its
//     public API.
//   - Derive tenant identity from anything other than the validated
//     principal; there is deliberately no API that accepts a caller-supplied
//     tenant override on the authorization path.
//   - Fall back from the configured authorities claim to any other claim
//     name at request time.
//
// # Performance contract
//
// Authorize is the hot path. With a warm cache it completes in one Redis
// GET; on a miss it performs one local signature verification plus one
// Redis SET. Token issuance is allowed additional Redis round-trips for
// rate limiting and grant bookkeeping.
package tenauth
