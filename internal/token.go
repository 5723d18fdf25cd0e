package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	// GrantCodeMinBytes and GrantCodeMaxBytes bound the entropy of an
	// authorization code before encoding.
	GrantCodeMinBytes = 16
	GrantCodeMaxBytes = 64
)

// TokenFingerprint returns a fixed-length cache key for an access token.
// The raw token never appears in Redis keys; only its SHA-256 digest does.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewGrantCode generates an opaque one-time authorization code with n
// bytes of entropy, encoded base64url without padding.
func NewGrantCode(n int) (string, error) {
	if n < GrantCodeMinBytes || n > GrantCodeMaxBytes {
		return "", errors.New("invalid grant code length")
	}

	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashGrantCode derives the Redis key digest for a grant code. Codes are
// stored and looked up by digest so a Redis snapshot never contains a
// redeemable code.
func HashGrantCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// EncodeDigest renders a code digest for use inside a Redis key.
func EncodeDigest(digest [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
