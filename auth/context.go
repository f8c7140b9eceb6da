package auth

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAuthenticated = errors.New("not authenticated")

type ctxKey struct{}

type principal struct {
	claims *Claims
	user   func() (*User, error)
}

func withPrincipal(ctx context.Context, claims *Claims, load func() (*User, error)) context.Context {
	return context.WithValue(ctx, ctxKey{}, &principal{claims: claims, user: sync.OnceValues(load)})
}

// ContextWithUser attaches an already loaded user.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	claims := &Claims{UserID: user.ID, TokenType: TokenTypeAccess}
	return withPrincipal(ctx, claims, func() (*User, error) { return user, nil })
}

// ClaimsFromContext returns the verified token claims of the request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	p, ok := ctx.Value(ctxKey{}).(*principal)
	if !ok {
		return nil, false
	}
	return p.claims, true
}

// UserFromContext resolves the request user on first use. It returns
// ErrNotAuthenticated without a valid token and a nil user when the token
// refers to a user that no longer exists.
func UserFromContext(ctx context.Context) (*User, error) {
	p, ok := ctx.Value(ctxKey{}).(*principal)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return p.user()
}
