package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/render"
)

type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserOut is the public representation of a user.
type UserOut struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

func NewUserOut(u *User) UserOut {
	return UserOut{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsActive:   u.IsActive,
		DateJoined: u.DateJoined,
	}
}

// Handlers serves the login and register endpoints.
type Handlers struct {
	issuer *Issuer
	users  *Repository
}

func NewHandlers(issuer *Issuer, users *Repository) *Handlers {
	return &Handlers{issuer: issuer, users: users}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Post("/login/", h.Login)
	r.Post("/register/", h.Register)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	credentials, err := render.Decode[Credentials](r)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}
	if user == nil {
		httperr.Write(w, r, httperr.Unauthorized("Incorrect username or password"))
		return
	}

	access, err := h.issuer.Issue(user.ID)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, Token{Access: access})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	credentials, err := render.Decode[Credentials](r)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), credentials.Email, credentials.Password)
	if errors.Is(err, ErrUserExists) {
		httperr.Write(w, r, httperr.BadRequest("User with this email already exists."))
		return
	}
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, NewUserOut(user))
}
