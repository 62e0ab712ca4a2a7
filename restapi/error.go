/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

// Error is the payload of an API error response, see ErrorResponseData.
// Domain names the service (e.g. "QuotaKit"), Code is a stable camel-case identifier clients may switch on.
type Error struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Codes of errors returned by the API.
const (
	ErrCodeInternal         = "internalError"
	ErrCodeNotFound         = "notFound"
	ErrCodeMethodNotAllowed = "methodNotAllowed"
	ErrCodeInvalidParam     = "invalidParam"
	ErrCodeUnauthenticated  = "unauthenticated"
	ErrCodeUpstreamFailed   = "upstreamFailed"
	ErrCodeTooManyRequests  = "tooManyRequests"
)

// Messages of the errors produced by the router and the recovery middleware.
const (
	ErrMessageInternal         = "Internal error."
	ErrMessageNotFound         = "Not found."
	ErrMessageMethodNotAllowed = "Method not allowed."
	ErrMessageTooManyRequests  = "Too many requests."
)

// NewError creates a new Error.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// NewInternalError creates an error that hides details of a failure from the client.
func NewInternalError(domain string) *Error {
	return NewError(domain, ErrCodeInternal, ErrMessageInternal)
}

// AddContext puts a value into the error context and returns the error for chaining.
func (e *Error) AddContext(field string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{}, 1)
	}
	e.Context[field] = value
	return e
}

// Error implements the error interface, so *Error may be returned and wrapped by clients.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Domain + "." + e.Code
	}
	return e.Domain + "." + e.Code + ": " + e.Message
}
