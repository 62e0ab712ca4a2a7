/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
)

// RecoveryStackSize defines the size of stack part which will be logged.
const RecoveryStackSize = 8192

// Recovery is a middleware that recovers from panics and responds with 500 in the restapi error format.
// The panic value is logged together with the stacktrace.
func Recovery(errDomain string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				logger := GetLoggerFromContext(r.Context())
				if p == http.ErrAbortHandler { //nolint:errorlint
					// Sentinel panic for aborting a handler, http.Server doesn't log it either.
					logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
					panic(p)
				}
				stack := make([]byte, RecoveryStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				logger.Error(fmt.Sprintf("Panic: %+v", p), log.Bytes("stack", stack))
				restapi.RespondError(rw, http.StatusInternalServerError, restapi.NewInternalError(errDomain), logger)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
