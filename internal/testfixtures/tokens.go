package testfixtures

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSigningSecret is the HS256 secret used by MintToken.
const TestSigningSecret = "test-signing-secret-with-enough-bytes"

// TokenOption customizes the claims of a minted token.
type TokenOption func(jwt.MapClaims)

// WithExpiry sets the exp claim.
func WithExpiry(t time.Time) TokenOption {
	return func(c jwt.MapClaims) {
		c["exp"] = t.Unix()
	}
}

// WithoutSubject drops the sub claim.
func WithoutSubject() TokenOption {
	return func(c jwt.MapClaims) {
		delete(c, "sub")
	}
}

// WithClaim sets an arbitrary claim.
func WithClaim(name string, value any) TokenOption {
	return func(c jwt.MapClaims) {
		c[name] = value
	}
}

// MintToken signs an HS256 token for subject and role with TestSigningSecret.
// An empty role omits the claim. Tokens expire an hour from now unless overridden.
func MintToken(tb testing.TB, subject, role string, opts ...TokenOption) string {
	tb.Helper()

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	for _, opt := range opts {
		opt(claims)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSigningSecret))
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
