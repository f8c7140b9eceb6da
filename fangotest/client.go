// Package fangotest provides an in-process HTTP client for testing fango
// applications.
package fangotest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/Alp4ka/fango/auth"
)

// Client sends requests straight to a handler without a network listener.
// It is not safe for concurrent use while ForceAuthenticate is called.
type Client struct {
	handler http.Handler
	issuer  *auth.Issuer
	header  http.Header
}

func NewClient(h http.Handler, issuer *auth.Issuer) *Client {
	return &Client{handler: h, issuer: issuer, header: make(http.Header)}
}

// ForceAuthenticate makes every following request carry a bearer token for
// user. A nil user drops the credentials again.
func (c *Client) ForceAuthenticate(user *auth.User) error {
	if user == nil {
		c.header.Del("Authorization")
		return nil
	}

	token, err := c.issuer.Issue(user.ID)
	if err != nil {
		return fmt.Errorf("force authenticate: %w", err)
	}
	c.header.Set("Authorization", "Bearer "+token)
	return nil
}

// SetHeader sets a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

func (c *Client) Get(path string) *Response {
	return c.Do(http.MethodGet, path, nil)
}

func (c *Client) Post(path string, body any) *Response {
	return c.Do(http.MethodPost, path, body)
}

func (c *Client) Put(path string, body any) *Response {
	return c.Do(http.MethodPut, path, body)
}

func (c *Client) Patch(path string, body any) *Response {
	return c.Do(http.MethodPatch, path, body)
}

func (c *Client) Delete(path string) *Response {
	return c.Do(http.MethodDelete, path, nil)
}

// Do serves one request. body is sent as is when it is a string, []byte
// or io.Reader, and JSON encoded otherwise. Encoding failures panic.
func (c *Client) Do(method, path string, body any) *Response {
	r := httptest.NewRequest(method, path, requestBody(body))
	for k, v := range c.header {
		r.Header[k] = v
	}
	if body != nil && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, r)
	return &Response{ResponseRecorder: rec}
}

func requestBody(body any) io.Reader {
	switch b := body.(type) {
	case nil:
		return nil
	case io.Reader:
		return b
	case string:
		return bytes.NewBufferString(b)
	case []byte:
		return bytes.NewBuffer(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			panic(fmt.Sprintf("fangotest: encode body: %v", err))
		}
		return bytes.NewBuffer(raw)
	}
}

type Response struct {
	*httptest.ResponseRecorder
}

// Decode reads the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body.Bytes(), v)
}

// Detail returns the "detail" field of an error body.
func (r *Response) Detail() string {
	var body struct {
		Detail string `json:"detail"`
	}
	_ = r.Decode(&body)
	return body.Detail
}
