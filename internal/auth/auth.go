package auth

import (
	"context"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
)

// Authenticator asserts that the caller authorized an operation as identity.
type Authenticator interface {
	RequireAuth(ctx context.Context, identity string) error
}

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated caller.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey{}).(string)
	return id, ok && id != ""
}

// ContextAuthenticator trusts the identity placed on the context by Middleware.
type ContextAuthenticator struct{}

func (ContextAuthenticator) RequireAuth(ctx context.Context, identity string) error {
	caller, ok := IdentityFrom(ctx)
	if !ok {
		return appErrors.Newf(appErrors.Unauthorized, 0, "no authenticated caller")
	}
	if caller != identity {
		return appErrors.Newf(appErrors.Unauthorized, 0, "caller %s cannot act as %s", caller, identity)
	}
	return nil
}
