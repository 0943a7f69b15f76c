package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the service relies on.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier turns a raw token into trusted claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Verification modes accepted by NewVerifier.
const (
	ModeHMAC   = "hmac"
	ModeRSA    = "rsa"
	ModeDecode = "decode"
)

// minSecretLength is the shortest accepted HMAC secret.
const minSecretLength = 32

// Settings select and configure a Verifier.
type Settings struct {
	Mode          string
	Secret        string
	PublicKeyPath string
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// NewVerifier builds the Verifier selected by settings.Mode.
func NewVerifier(settings Settings) (Verifier, error) {
	switch strings.ToLower(settings.Mode) {
	case ModeHMAC:
		return NewHMACVerifier(settings.Secret, settings)
	case ModeRSA:
		return LoadRSAVerifier(settings.PublicKeyPath, settings)
	case ModeDecode:
		return ClaimsDecoder{}, nil
	default:
		return nil, fmt.Errorf("auth: unknown verification mode %q", settings.Mode)
	}
}

func parserOptions(methods []string, settings Settings) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithIssuedAt(),
	}
	if settings.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(settings.Leeway))
	}
	if settings.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(settings.Issuer))
	}
	if settings.Audience != "" {
		opts = append(opts, jwt.WithAudience(settings.Audience))
	}
	return opts
}

// ClaimsDecoder reads claims without checking the signature or expiry. It
// exists for trusted internal deployments where a gateway already verified
// the token.
type ClaimsDecoder struct{}

// Verify implements Verifier.
func (ClaimsDecoder) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// HMACVerifier checks HS256/HS384/HS512 tokens against a shared secret.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACVerifier creates a verifier for secret. The secret must be at least
// 32 bytes long.
func NewHMACVerifier(secret string, settings Settings) (*HMACVerifier, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: HMAC secret must be at least %d bytes", minSecretLength)
	}
	return &HMACVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(parserOptions([]string{"HS256", "HS384", "HS512"}, settings)...),
	}, nil
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// RSAVerifier checks RS256/RS384/RS512 tokens against a public key.
type RSAVerifier struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
}

// NewRSAVerifier creates a verifier from a PEM encoded public key.
func NewRSAVerifier(publicKeyPEM []byte, settings Settings) (*RSAVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse RSA public key: %w", err)
	}
	return &RSAVerifier{
		key:    key,
		parser: jwt.NewParser(parserOptions([]string{"RS256", "RS384", "RS512"}, settings)...),
	}, nil
}

// LoadRSAVerifier reads a PEM public key from path.
func LoadRSAVerifier(path string, settings Settings) (*RSAVerifier, error) {
	if path == "" {
		return nil, errors.New("auth: public key path is required for rsa mode")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read public key: %w", err)
	}
	return NewRSAVerifier(data, settings)
}

// Verify implements Verifier.
func (v *RSAVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
