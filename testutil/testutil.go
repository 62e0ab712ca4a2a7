/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains assertion helpers shared by package tests.
package testutil

type tHelper interface {
	Helper()
}
