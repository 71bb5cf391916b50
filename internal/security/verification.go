package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// verificationTokenBytes is the entropy of a raw email verification token.
const verificationTokenBytes = 32

// GenerateVerificationToken returns a new opaque email verification token and its
// storage hash. The raw value goes into the mail link once; only the hash is persisted.
func GenerateVerificationToken() (raw, hash string, err error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, HashVerificationToken(raw), nil
}

// HashVerificationToken returns a SHA-256 hash of the verification token, hex-encoded.
func HashVerificationToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
