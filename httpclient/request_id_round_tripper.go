/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"

	"github.com/acronis/go-quotakit/httpserver/middleware"
)

// RequestIDRoundTripper propagates the ID of the incoming request in the X-Request-ID header.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
}

// RoundTrip adds X-Request-ID header to the request.
func (rt *RequestIDRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	requestID := middleware.GetRequestIDFromContext(r.Context())
	if requestID == "" || r.Header.Get(middleware.HeaderRequestID) != "" {
		return rt.Delegate.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set(middleware.HeaderRequestID, requestID)
	return rt.Delegate.RoundTrip(r)
}
