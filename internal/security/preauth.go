package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// preAuthAudience separates markers from access tokens at the claim level, on top of
// the separate signing secret.
const preAuthAudience = "authentik-preauth"

// PreAuthSigner issues and validates the short-lived marker a login receives when a
// second factor is still owed. Markers are signed with the session secret, never the
// JWT secret, so one can never pass for an access token. The jti carries the persisted
// intent id; the marker alone grants nothing.
type PreAuthSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewPreAuthSigner returns a PreAuthSigner signing with secret, valid for ttl per marker.
func NewPreAuthSigner(secret []byte, issuer string, ttl time.Duration) *PreAuthSigner {
	return &PreAuthSigner{secret: secret, issuer: issuer, ttl: ttl}
}

// TTL reports the marker lifetime; intent rows share the same expiry.
func (s *PreAuthSigner) TTL() time.Duration {
	return s.ttl
}

// Issue signs a marker binding intentID to userID. Returns the marker and its expiry.
func (s *PreAuthSigner) Issue(intentID, userID string) (marker string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        intentID,
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{preAuthAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	marker, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return marker, expiresAt, err
}

// Validate parses the marker and returns the intent and user it was issued for.
// Returns ErrInvalidToken for any failure, including expiry and wrong audience.
func (s *PreAuthSigner) Validate(marker string) (intentID, userID string, err error) {
	token, err := jwt.ParseWithClaims(marker, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != s.issuer {
		return "", "", ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == preAuthAudience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", "", ErrInvalidToken
	}
	if claims.ID == "" || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.ID, claims.Subject, nil
}
