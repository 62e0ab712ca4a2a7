/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"fmt"
	"net/url"
	"strings"
)

// ClientError is returned by the client helpers when a request fails or the response is not successful.
// StatusCode is zero if no response was received.
type ClientError struct {
	Message    string
	Method     string
	URL        *url.URL
	StatusCode int
	Err        error
}

func (e *ClientError) wrap(message string, err error) *ClientError {
	e.Message = message
	e.Err = err
	return e
}

// Error implements the error interface, e.g. "GET https://finnhub.io/api/v1/quote: status 502: unexpected status code".
func (e *ClientError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Method)
	sb.WriteByte(' ')
	if e.URL != nil {
		u := *e.URL
		u.RawQuery = "" // may carry API tokens
		sb.WriteString(u.String())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether repeating the request may succeed.
// Missing responses, 5xx and 429 are temporary.
func (e *ClientError) IsTemporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429
}
