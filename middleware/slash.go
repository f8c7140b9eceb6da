// Package middleware holds the HTTP middleware of the application chain.
package middleware

import (
	"net/http"
	"strings"
)

// AppendSlash redirects requests whose path lacks a trailing slash to the
// same path with one. GET and HEAD get a 301, other methods a 308 so the
// body is replayed. Paths under one of the exempt prefixes, and paths whose
// last segment looks like a file name, pass through.
func AppendSlash(exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasSuffix(path, "/") || isExempt(path, exempt) || hasExtension(path) {
				next.ServeHTTP(w, r)
				return
			}

			target := *r.URL
			target.Path = path + "/"
			if target.RawPath != "" {
				target.RawPath += "/"
			}

			status := http.StatusPermanentRedirect
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				status = http.StatusMovedPermanently
			}
			http.Redirect(w, r, target.RequestURI(), status)
		})
	}
}

func isExempt(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func hasExtension(path string) bool {
	last := path[strings.LastIndex(path, "/")+1:]
	return strings.Contains(last, ".")
}
