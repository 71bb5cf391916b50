package security

import (
	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret creates a fresh TOTP key for the account and returns its base32
// secret plus the otpauth:// URL authenticator apps enroll from.
func GenerateTOTPSecret(issuer, accountName string) (secret, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP reports whether code is currently valid for the base32 secret.
// The underlying check allows one period of clock skew either way.
func ValidateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
