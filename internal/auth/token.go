package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// Opaque tokens are "<recordID>.<secret>". The record id locates the row in
// a single indexed lookup; the secret (32 random bytes, 256 bits) is
// persisted only as a SHA-256 digest and compared in constant time, so a
// lookup never short-circuits on partial matches.

func newTokenSecret() (secret, digest string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)
	return secret, digestSecret(secret), nil
}

func digestSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func splitToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid token format")
	}
	return parts[0], parts[1], nil
}

func matchSecret(storedDigest, secret string) bool {
	actual := digestSecret(secret)
	if len(storedDigest) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedDigest), []byte(actual)) == 1
}
