/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import "net/http"

// UserAgentRoundTripper sets the User-Agent header in outgoing requests that don't have one.
// With Append, the value is appended to an existing header instead.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
	Append    bool
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	userAgent := req.Header.Get("User-Agent")
	switch {
	case userAgent == "":
		userAgent = rt.UserAgent
	case rt.Append:
		userAgent += " " + rt.UserAgent
	default:
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // RoundTripper must not modify the request.
	req.Header.Set("User-Agent", userAgent)
	return rt.Delegate.RoundTrip(req)
}
