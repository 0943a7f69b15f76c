package authz

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
)

// CredentialReader is the subset of auth.Reader the guard depends on.
type CredentialReader interface {
	Read(ctx context.Context, header string) (auth.Credential, error)
}

// Guard authorizes requests from their Authorization header value.
type Guard struct {
	reader CredentialReader
}

// NewGuard returns a guard that reads credentials with reader.
func NewGuard(reader CredentialReader) *Guard {
	return &Guard{reader: reader}
}

// RequireAuthenticated returns the principal named by header. Any credential
// failure yields application.ErrUnauthenticated.
func (g *Guard) RequireAuthenticated(ctx context.Context, header string) (application.Principal, error) {
	if g == nil || g.reader == nil {
		return application.Principal{}, unauthenticated("authentication unavailable", nil)
	}

	cred, err := g.reader.Read(ctx, header)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredential):
			return application.Principal{}, unauthenticated("missing bearer token", err)
		case errors.Is(err, auth.ErrMissingSubject):
			return application.Principal{}, unauthenticated("token has no subject", err)
		default:
			return application.Principal{}, unauthenticated("invalid bearer token", err)
		}
	}

	return application.Principal{
		UserID: cred.Subject,
		Role:   application.Role(cred.Role),
	}, nil
}

// RequireRole authenticates the caller and then requires one of allowed.
// An absent role never matches.
func (g *Guard) RequireRole(ctx context.Context, header string, allowed ...application.Role) (application.Principal, error) {
	principal, err := g.RequireAuthenticated(ctx, header)
	if err != nil {
		return application.Principal{}, err
	}
	if principal.Role == "" || !slices.Contains(allowed, principal.Role) {
		return application.Principal{}, &application.RuleError{
			Kind:   application.ErrForbidden,
			Reason: "insufficient permissions",
		}
	}
	return principal, nil
}

func unauthenticated(reason string, cause error) error {
	ruleErr := &application.RuleError{Kind: application.ErrUnauthenticated, Reason: reason}
	if cause == nil {
		return ruleErr
	}
	return fmt.Errorf("%w: %w", ruleErr, cause)
}
