// Package auth guards the HTTP transport with basic or API key authentication.
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/dupefinder/internal/config"
)

// Middleware wraps an HTTP handler
type Middleware func(http.Handler) http.Handler

// DefaultExcludedPaths bypass authentication (health checks)
var DefaultExcludedPaths = []string{"/health"}

// Option configures NewMiddleware
type Option func(*options)

type options struct {
	excluded map[string]bool
}

// WithExcludedPaths replaces the paths that bypass authentication.
func WithExcludedPaths(paths ...string) Option {
	return func(o *options) {
		o.excluded = make(map[string]bool, len(paths))
		for _, p := range paths {
			o.excluded[p] = true
		}
	}
}

// NewMiddleware creates a new authentication middleware based on settings
func NewMiddleware(settings config.AuthSettings, opts ...Option) (Middleware, error) {
	o := options{}
	WithExcludedPaths(DefaultExcludedPaths...)(&o)
	for _, opt := range opts {
		opt(&o)
	}

	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return guard(o, basicAuthenticator(settings.Basic)), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return guard(o, apiKeyAuthenticator(settings.APIKeys)), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// authenticator reports whether a request carries valid credentials. On
// failure it may set response headers before the 401 is written.
type authenticator func(w http.ResponseWriter, r *http.Request) bool

// guard rejects unauthenticated requests, except for excluded paths.
func guard(o options, authenticate authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o.excluded[r.URL.Path] || authenticate(w, r) {
				next.ServeHTTP(w, r)
				return
			}
			slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func basicAuthenticator(settings config.BasicAuthSettings) authenticator {
	return func(w http.ResponseWriter, r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		if ok && userMatch && passMatch {
			return true
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
		return false
	}
}

func apiKeyAuthenticator(apiKeys []string) authenticator {
	return func(_ http.ResponseWriter, r *http.Request) bool {
		key := requestAPIKey(r)
		if key == "" {
			return false
		}

		valid := false
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				valid = true
			}
		}
		return valid
	}
}

// requestAPIKey reads the key from X-API-Key, or from a bearer token.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
