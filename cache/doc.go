// Package cache implements the Redis-backed token verification cache.
//
// Entries are keyed by SHA-256 token fingerprint and hold the
// binary-encoded principal produced by full verification. The cache is
// correctness-neutral: a hit returns exactly what verification would
// have produced, a miss (including corrupt or expired entries) falls
// back to verification, and no entry outlives its token.
//
// # What this package must NOT do
//
//   - Store raw tokens or signing keys.
//   - Serve an entry past the principal's expiry.
//   - Turn Redis outages into authorization failures on its own; the
//     Engine decides how to degrade.
package cache
