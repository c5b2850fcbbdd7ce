package auth

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	// Subject is the identity id. Customers are resolved by it.
	Subject string
	// Staff principals may use admin operations.
	Staff bool
	// APIKeyID is set when the principal authenticated with an API key.
	APIKeyID string
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
