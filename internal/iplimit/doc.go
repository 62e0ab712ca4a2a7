/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package iplimit provides in-process rate limiters keyed by an arbitrary string (usually the client IP).
// They protect the service from anonymous floods before any per-user quota is checked.
package iplimit
