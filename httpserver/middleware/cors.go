/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vasayxtx/go-glob"
)

// CORS defaults.
const (
	DefaultCORSMaxAge = 10 * time.Minute
)

var (
	defaultCORSAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultCORSAllowedHeaders = []string{"Authorization", "Content-Type", HeaderRequestID, "X-User-ID"}
	defaultCORSExposedHeaders = []string{
		"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", HeaderRequestID,
	}
)

// CORSOpts represents an options for CORS middleware.
type CORSOpts struct {
	// AllowedOrigins may contain exact origins ("https://app.example.com")
	// and glob patterns ("https://*.lovable.app"). "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

type corsHandler struct {
	next           http.Handler
	exactOrigins   map[string]struct{}
	originMatchers []func(string) bool
	allowAny       bool
	allowedMethods string
	allowedHeaders string
	exposedHeaders string
	maxAge         string
}

// CORS is a middleware that sets Access-Control-* headers for allowed origins and answers preflight requests.
// Requests from other origins are served without CORS headers, so browsers block reading the response.
func CORS(opts CORSOpts) func(next http.Handler) http.Handler {
	if opts.AllowedMethods == nil {
		opts.AllowedMethods = defaultCORSAllowedMethods
	}
	if opts.AllowedHeaders == nil {
		opts.AllowedHeaders = defaultCORSAllowedHeaders
	}
	if opts.ExposedHeaders == nil {
		opts.ExposedHeaders = defaultCORSExposedHeaders
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = DefaultCORSMaxAge
	}

	exact := make(map[string]struct{}, len(opts.AllowedOrigins))
	var matchers []func(string) bool
	allowAny := false
	for _, origin := range opts.AllowedOrigins {
		origin = strings.ToLower(strings.TrimSpace(origin))
		switch {
		case origin == "":
		case origin == "*":
			allowAny = true
		case strings.Contains(origin, "*"):
			matchers = append(matchers, glob.Compile(origin))
		default:
			exact[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return &corsHandler{
			next:           next,
			exactOrigins:   exact,
			originMatchers: matchers,
			allowAny:       allowAny,
			allowedMethods: strings.Join(opts.AllowedMethods, ", "),
			allowedHeaders: strings.Join(opts.AllowedHeaders, ", "),
			exposedHeaders: strings.Join(opts.ExposedHeaders, ", "),
			maxAge:         strconv.Itoa(int(opts.MaxAge.Seconds())),
		}
	}
}

func (h *corsHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		h.next.ServeHTTP(rw, r)
		return
	}
	isPreflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

	header := rw.Header()
	header.Add("Vary", "Origin")
	if !h.isOriginAllowed(origin) {
		if isPreflight {
			rw.WriteHeader(http.StatusForbidden)
			return
		}
		h.next.ServeHTTP(rw, r)
		return
	}

	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Credentials", "true")
	if isPreflight {
		header.Set("Access-Control-Allow-Methods", h.allowedMethods)
		header.Set("Access-Control-Allow-Headers", h.allowedHeaders)
		header.Set("Access-Control-Max-Age", h.maxAge)
		rw.WriteHeader(http.StatusNoContent)
		return
	}
	header.Set("Access-Control-Expose-Headers", h.exposedHeaders)
	h.next.ServeHTTP(rw, r)
}

func (h *corsHandler) isOriginAllowed(origin string) bool {
	if h.allowAny {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := h.exactOrigins[origin]; ok {
		return true
	}
	for _, match := range h.originMatchers {
		if match(origin) {
			return true
		}
	}
	return false
}
