/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpapi contains HTTP handlers of the edge API and the middleware enforcing per-user quotas.
package httpapi
