package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViewsRouter(t *testing.T) (http.Handler, *Issuer) {
	t.Helper()
	iss := newTestIssuer(t)
	router := chi.NewRouter()
	NewHandlers(iss, NewRepository(newUsersDB(t), testHasher)).Routes(router)
	return router, iss
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func Test_Views_RegisterLogin(t *testing.T) {
	router, iss := newViewsRouter(t)

	rec := post(router, "/register/", `{"email":"ann@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var registered UserOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, "ann@example.com", registered.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = post(router, "/login/", `{"email":"ann@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	claims, err := iss.Parse(token.Access)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
}

func Test_Views_Errors(t *testing.T) {
	router, _ := newViewsRouter(t)
	require.Equal(t, http.StatusOK, post(router, "/register/", `{"email":"ann@example.com","password":"s3cret"}`).Code)

	tests := []struct {
		name          string
		path          string
		body          string
		wantStatus    int
		wantDetail    string
		wantChallenge bool
	}{
		{"wrong password", "/login/", `{"email":"ann@example.com","password":"nope"}`, http.StatusUnauthorized, "Incorrect username or password", true},
		{"unknown user", "/login/", `{"email":"eve@example.com","password":"nope"}`, http.StatusUnauthorized, "Incorrect username or password", true},
		{"missing password", "/login/", `{"email":"ann@example.com"}`, http.StatusUnprocessableEntity, "Validation failed.", false},
		{"duplicate registration", "/register/", `{"email":"ann@example.com","password":"x"}`, http.StatusBadRequest, "User with this email already exists.", false},
		{"malformed body", "/register/", `{`, http.StatusBadRequest, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(router, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantChallenge, rec.Header().Get("WWW-Authenticate") == "Bearer")
			if tt.wantDetail != "" {
				var body struct{ Detail string }
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantDetail, body.Detail)
			}
		})
	}
}
