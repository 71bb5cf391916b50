package security

import "time"

// NewTestTokenProvider returns a TokenProvider with a fixed secret.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProvider([]byte("unit-test-jwt-secret"), "test-issuer", "test-audience", 15*time.Minute)
}

// NewTestPreAuthSigner returns a PreAuthSigner with a fixed secret, distinct from the
// test token provider's. For unit tests only.
func NewTestPreAuthSigner() *PreAuthSigner {
	return NewPreAuthSigner([]byte("unit-test-session-secret"), "test-issuer", 5*time.Minute)
}
