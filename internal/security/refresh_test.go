package security

import (
	"strings"
	"testing"
)

func TestGenerateRefreshToken(t *testing.T) {
	raw, hash, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if len(raw) != 64 {
		t.Errorf("raw length = %d, want 64 hex chars", len(raw))
	}
	if hash != HashRefreshToken(raw) {
		t.Error("returned hash should equal HashRefreshToken(raw)")
	}
	if raw == hash {
		t.Error("raw token must not equal its hash")
	}

	raw2, _, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if raw == raw2 {
		t.Error("two generated tokens should differ")
	}
}

func TestValidRefreshTokenFormat(t *testing.T) {
	raw, _, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	testCases := []struct {
		name  string
		token string
		want  bool
	}{
		{"generated", raw, true},
		{"empty", "", false},
		{"short", raw[:40], false},
		{"long", raw + "ab", false},
		{"non-hex", strings.Repeat("z", 64), false},
		{"jwt-shaped", "eyJhbGciOi.eyJzdWIiOi.sig", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidRefreshTokenFormat(tc.token); got != tc.want {
				t.Errorf("ValidRefreshTokenFormat = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHashRefreshToken_Consistent(t *testing.T) {
	token := "test-refresh-token-123"
	hash1 := HashRefreshToken(token)
	hash2 := HashRefreshToken(token)

	if hash1 != hash2 {
		t.Errorf("HashRefreshToken not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
}

func TestHashRefreshToken_DifferentTokens(t *testing.T) {
	if HashRefreshToken("token-1") == HashRefreshToken("token-2") {
		t.Error("HashRefreshToken produced same hash for different tokens")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	token := "test-refresh-token-456"
	storedHash := HashRefreshToken(token)

	if !RefreshTokenHashEqual(token, storedHash) {
		t.Error("RefreshTokenHashEqual should match correct token")
	}
	if RefreshTokenHashEqual("wrong-token", storedHash) {
		t.Error("RefreshTokenHashEqual should reject incorrect token")
	}
	if RefreshTokenHashEqual(token, "a"+storedHash) {
		t.Error("RefreshTokenHashEqual should reject hash with different length")
	}
	if RefreshTokenHashEqual("", "") {
		t.Error("RefreshTokenHashEqual should not match empty inputs")
	}
}
