// Package jwt owns signing-key material and the mint/verify cycle for
// access tokens. It deliberately knows nothing about claim semantics:
// the payload it signs and the payload it returns are opaque maps, so
// the choice of which claim carries authorities stays an explicit,
// validated decision of the caller.
package jwt
