/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net"
	"net/http"
	"strings"
)

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// ClientIP is a middleware that determines the IP address of the client and puts it into request's context.
// When trustForwardedHeaders is true, the first address of X-Forwarded-For (or X-Real-IP) wins over the peer address.
func ClientIP(trustForwardedHeaders bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ip := ""
			if trustForwardedHeaders {
				ip = getOriginAddr(r)
			}
			if ip == "" {
				ip = r.RemoteAddr
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					ip = host
				}
			}
			next.ServeHTTP(rw, r.WithContext(NewContextWithClientIP(r.Context(), ip)))
		})
	}
}

func getOriginAddr(r *http.Request) string {
	if forwardFor := r.Header.Get(headerForwardedFor); forwardFor != "" {
		if first := strings.IndexByte(forwardFor, ','); first != -1 {
			forwardFor = forwardFor[:first]
		}
		return strings.TrimSpace(forwardFor)
	}
	return strings.TrimSpace(r.Header.Get(headerRealIP))
}
