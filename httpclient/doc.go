/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient provides an http.Client for calls to upstream services.
// Every outgoing request is logged and measured.
package httpclient
