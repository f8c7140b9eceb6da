package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alp4ka/fango/auth"
)

func Test_RateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.5, 2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(r *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}
	fromIP := func(addr string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		return r
	}
	asUser := func(id int64) *http.Request {
		r := fromIP("10.0.0.9:1000")
		return r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: id}))
	}

	assert.Equal(t, http.StatusOK, serve(fromIP("10.0.0.1:1000")).Code)
	assert.Equal(t, http.StatusOK, serve(fromIP("10.0.0.1:2000")).Code)

	rec := serve(fromIP("10.0.0.1:3000"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Request was throttled.")

	assert.Equal(t, http.StatusOK, serve(fromIP("10.0.0.2:1000")).Code, "other addresses have their own bucket")

	assert.Equal(t, http.StatusOK, serve(asUser(1)).Code)
	assert.Equal(t, http.StatusOK, serve(asUser(1)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(asUser(1)).Code)
	assert.Equal(t, http.StatusOK, serve(asUser(2)).Code, "users are keyed by id, not address")
}

func Test_clientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:4321"
	assert.Equal(t, "ip:192.168.1.5", clientKey(r))

	r.RemoteAddr = "unix"
	assert.Equal(t, "ip:unix", clientKey(r))

	r = r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: 42}))
	assert.Equal(t, "user:42", clientKey(r))
}
