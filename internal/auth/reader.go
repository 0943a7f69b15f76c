package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredential is returned when no credential accompanies the request.
	ErrMissingCredential = errors.New("auth: missing credential")
	// ErrMalformedCredential is returned when the token cannot be decoded or verified.
	ErrMalformedCredential = errors.New("auth: malformed credential")
	// ErrMissingSubject is returned when a verified token carries no sub claim.
	ErrMissingSubject = errors.New("auth: credential has no subject")
)

// Credential is the identity read from a bearer token. Role is empty when the
// token carries no role claim.
type Credential struct {
	Subject string
	Role    string
}

// Reader extracts credentials from Authorization header values.
type Reader struct {
	verifier Verifier
}

// NewReader returns a Reader that trusts tokens accepted by verifier.
func NewReader(verifier Verifier) *Reader {
	return &Reader{verifier: verifier}
}

// Read accepts "Bearer <token>", with the scheme matched case-insensitively,
// or a bare token.
func (r *Reader) Read(_ context.Context, header string) (Credential, error) {
	token := bearerToken(header)
	if token == "" {
		return Credential{}, ErrMissingCredential
	}
	if r == nil || r.verifier == nil {
		return Credential{}, fmt.Errorf("%w: no verifier configured", ErrMalformedCredential)
	}

	claims, err := r.verifier.Verify(token)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Credential{}, ErrMissingSubject
	}
	return Credential{Subject: claims.Subject, Role: claims.Role}, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		header = header[len("bearer "):]
	} else if strings.EqualFold(header, "bearer") {
		return ""
	}
	return strings.TrimSpace(header)
}
