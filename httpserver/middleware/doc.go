/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package middleware contains HTTP middlewares applied to every request of the service.
package middleware
