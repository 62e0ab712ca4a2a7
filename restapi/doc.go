/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi contains helpers for JSON REST APIs: the error envelope, response writers
// and a small client for calling upstream JSON APIs.
package restapi
