/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/rs/xid"
)

// HeaderRequestID is the header with the request id.
const HeaderRequestID = "X-Request-ID"

// RequestID is a middleware that reads value of X-Request-ID request's HTTP header and generates new one if it's empty.
// The id is put into request's context and returned in X-Request-ID response header.
// It's using xid (based on Mongo Object ID algorithm).
func RequestID() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = xid.New().String()
			}
			rw.Header().Set(HeaderRequestID, requestID)
			next.ServeHTTP(rw, r.WithContext(NewContextWithRequestID(r.Context(), requestID)))
		})
	}
}
