package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alp4ka/fango/logging"
)

func Test_Logging(t *testing.T) {
	var buf bytes.Buffer
	logging.Setup(logging.Config{Level: "info", JSON: true, Output: &buf})

	tests := []struct {
		name    string
		status  int
		wantMsg string
	}{
		{"success", http.StatusCreated, `"msg":"request served"`},
		{"client error", http.StatusNotFound, `"msg":"request rejected"`},
		{"server error", http.StatusBadGateway, `"msg":"request failed"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/books/", nil))

			out := buf.String()
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, `"path":"/api/books/"`)
			assert.Contains(t, out, `"method":"GET"`)
			assert.Contains(t, out, `"duration"`)
		})
	}
}

func Test_Logging_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	logging.Setup(logging.Config{Level: "info", JSON: true, Output: &buf})

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), `"status":200`)
	assert.Contains(t, buf.String(), `"bytes":2`)
}
