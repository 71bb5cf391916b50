package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// refreshTokenBytes is the entropy of a raw refresh token; hex doubles it on the wire.
const refreshTokenBytes = 32

// GenerateRefreshToken returns a new opaque refresh token and its storage hash.
// The raw value goes to the client once and is never persisted; only the hash is.
func GenerateRefreshToken() (raw, hash string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, HashRefreshToken(raw), nil
}

// ValidRefreshTokenFormat reports whether s has the shape of a token this service
// issues: 64 hex characters. Lets callers reject garbage before any database lookup.
func ValidRefreshTokenFormat(s string) bool {
	if len(s) != hex.EncodedLen(refreshTokenBytes) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashRefreshToken returns a SHA-256 hash of the refresh token string, hex-encoded.
// Used for storing and comparing refresh tokens without storing the raw token.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash. Returns true only if they match.
func RefreshTokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashRefreshToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
