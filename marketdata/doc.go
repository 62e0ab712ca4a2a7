/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package marketdata serves instrument quotes fetched from an upstream price API.
// Quotes are cached through reqcache with a TTL that depends on the asset class of the instrument.
package marketdata
