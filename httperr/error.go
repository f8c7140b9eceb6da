// Package httperr maps application failures onto HTTP responses.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Error is an error that knows how it should be rendered to a client.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Headers map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// WithDetails returns a copy of e carrying the given details.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = maps.Clone(details)
	return &cp
}

// WithHeader returns a copy of e that sets header k on the response.
func (e *Error) WithHeader(k, v string) *Error {
	cp := *e
	cp.Headers = maps.Clone(e.Headers)
	if cp.Headers == nil {
		cp.Headers = make(map[string]string, 1)
	}
	cp.Headers[k] = v
	return &cp
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "bad_request", message)
}

// Unauthorized always asks the client for a bearer token.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "unauthorized", message).WithHeader("WWW-Authenticate", "Bearer")
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "forbidden", message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, "not_found", message)
}

func MethodNotAllowed(message string) *Error {
	return New(http.StatusMethodNotAllowed, "method_not_allowed", message)
}

func Unprocessable(message string, details map[string]any) *Error {
	return New(http.StatusUnprocessableEntity, "validation_error", message).WithDetails(details)
}

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, "rate_limited", message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, "internal", message)
}

// As reports whether err wraps an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

type body struct {
	Detail    string         `json:"detail"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Write renders err as a JSON error response. Errors that are not *Error
// values are translated with FromDB first and reported as 500 otherwise.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := As(FromDB(err))
	if !ok {
		logrus.WithError(err).
			WithField("request_id", middleware.GetReqID(r.Context())).
			Errorf("unhandled error on %s %s", r.Method, r.URL.Path)
		e = Internal("Internal server error.")
	}

	for k, v := range e.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)

	_ = json.NewEncoder(w).Encode(body{
		Detail:    e.Message,
		Code:      e.Code,
		Details:   e.Details,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
