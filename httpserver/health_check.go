/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
)

// StatusClientClosedRequest is a special HTTP status code used by Nginx to show that the client
// closed the request before the server could send a response
const StatusClientClosedRequest = 499

// HealthCheck checks a single component (e.g. a database connection). A non-nil error marks it unhealthy.
type HealthCheck func(ctx context.Context) error

type healthCheckResponseData struct {
	Components map[string]bool `json:"components"`
}

// HealthCheckHandler implements http.Handler and does health-check of a service.
type HealthCheckHandler struct {
	checks map[string]HealthCheck
}

// NewHealthCheckHandler creates a new http.Handler for doing health-check.
// Every check is called on each request, the response contains the status of each component.
func NewHealthCheckHandler(checks map[string]HealthCheck) *HealthCheckHandler {
	return &HealthCheckHandler{checks: checks}
}

// ServeHTTP serves heath-check HTTP request.
func (h *HealthCheckHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	hasUnhealthyComponent := false
	respData := healthCheckResponseData{Components: make(map[string]bool, len(h.checks))}
	for name, check := range h.checks {
		err := check(r.Context())
		if err != nil {
			logger.Error("component is unhealthy", log.String("component", name), log.Error(err))
			hasUnhealthyComponent = true
		}
		respData.Components[name] = err == nil
	}

	if errors.Is(r.Context().Err(), context.Canceled) {
		rw.WriteHeader(StatusClientClosedRequest)
		return
	}

	respStatus := http.StatusOK
	if hasUnhealthyComponent {
		respStatus = http.StatusServiceUnavailable
	}
	restapi.RespondCodeAndJSON(rw, respStatus, respData, logger)
}
