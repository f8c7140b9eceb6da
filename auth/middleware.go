package auth

import (
	"context"
	"net/http"

	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/logging"
)

// UserLoader loads the user a token refers to.
type UserLoader interface {
	Get(ctx context.Context, id int64) (*User, error)
}

// Authenticator is the bearer token backend.
type Authenticator struct {
	issuer *Issuer
	users  UserLoader
}

func NewAuthenticator(issuer *Issuer, users UserLoader) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Middleware attaches the token claims and a lazy user loader to the
// request context. Requests without an Authorization header or with a
// non-bearer scheme pass through unauthenticated.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.issuer.Decode(header)
		if err != nil {
			logging.FromContext(r.Context()).WithError(err).Debug("rejected bearer token")
			httperr.Write(w, r, httperr.Unauthorized("Invalid JWT Token."))
			return
		}
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		load := func() (*User, error) { return a.users.Get(ctx, claims.UserID) }
		next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, claims, load)))
	})
}

// RequireUser rejects requests that carry no valid bearer token.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			httperr.Write(w, r, httperr.Unauthorized("Not authenticated"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
