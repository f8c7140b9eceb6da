// Package permissions decides whether the request user may call a route.
package permissions

import (
	"errors"
	"net/http"

	"github.com/Alp4ka/fango/auth"
	"github.com/Alp4ka/fango/httperr"
)

// Target names the model a route operates on.
type Target struct {
	AppLabel  string
	ModelName string
}

// Permission checks a request against a target model. A nil error grants
// access, anything else is rendered with httperr.
type Permission interface {
	Check(r *http.Request, target Target) error
}

type Func func(r *http.Request, target Target) error

func (f Func) Check(r *http.Request, target Target) error {
	return f(r, target)
}

// AllowAny grants every request.
var AllowAny Permission = Func(func(*http.Request, Target) error { return nil })

// IsAuthenticated grants requests made by an active user.
var IsAuthenticated Permission = Func(func(r *http.Request, _ Target) error {
	user, err := auth.UserFromContext(r.Context())
	if err != nil && !errors.Is(err, auth.ErrNotAuthenticated) {
		return err
	}
	if user == nil || !user.IsActive {
		return httperr.Unauthorized("Not authenticated")
	}
	return nil
})

// Resolve returns the first non-nil permission, falling back to AllowAny.
// Callers pass them from the most to the least specific scope.
func Resolve(perms ...Permission) Permission {
	for _, p := range perms {
		if p != nil {
			return p
		}
	}
	return AllowAny
}
