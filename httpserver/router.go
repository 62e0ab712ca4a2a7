/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/internal/iplimit"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
)

// systemEndpoints is a list of endpoints which are not involved in metrics collecting and IP rate limiting.
var systemEndpoints = []string{"/metrics", "/healthz"}

// APIVersion is a type alias for API version.
type APIVersion = int

// APIRoute is a type alias for single API route.
type APIRoute = func(router chi.Router)

// RouterOpts represents options for creating chi.Router.
type RouterOpts struct {
	// ServiceNameInURL is a prefix for API routes (e.g. "edge" gives "/api/edge/v1").
	ServiceNameInURL string
	APIRoutes        map[APIVersion]APIRoute
	ErrorDomain      string
	HealthChecks     map[string]HealthCheck
	// MetricsHandler serves /metrics. promhttp.Handler() is used if nil.
	MetricsHandler http.Handler
	// HTTPRequestMetrics is optional, requests are not observed if nil.
	HTTPRequestMetrics *middleware.HTTPRequestMetricsCollector
}

// NewRouter creates a new chi.Router with the default middlewares (request id, client IP, logging,
// recovery, metrics, CORS, IP rate limit) and system endpoints.
func NewRouter(cfg *Config, logger log.FieldLogger, opts RouterOpts) (chi.Router, error) {
	logger = log.OrDisabled(logger)
	router := chi.NewRouter()
	if err := applyDefaultMiddlewaresToRouter(router, cfg, logger, opts); err != nil {
		return nil, err
	}
	configureRouter(router, logger, opts)
	return router, nil
}

func configureRouter(router chi.Router, logger log.FieldLogger, opts RouterOpts) {
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	router.Method(http.MethodGet, "/healthz", NewHealthCheckHandler(opts.HealthChecks))

	router.Route(fmt.Sprintf("/api/%s", opts.ServiceNameInURL), func(router chi.Router) {
		for ver, r := range opts.APIRoutes {
			router.Route(fmt.Sprintf("/v%d", ver), r)
		}
	})

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound)
		restapi.RespondError(rw, http.StatusNotFound, apiErr, middleware.GetLoggerFromContext(r.Context()))
	})

	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
		restapi.RespondError(rw, http.StatusMethodNotAllowed, apiErr, middleware.GetLoggerFromContext(r.Context()))
	})
}

func applyDefaultMiddlewaresToRouter(router chi.Router, cfg *Config, logger log.FieldLogger, opts RouterOpts) error {
	router.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
		})
	})

	router.Use(middleware.RequestID())
	router.Use(middleware.ClientIP(cfg.IPLimit.TrustForwardedHeaders))
	router.Use(middleware.Logging(logger, middleware.LoggingOpts{
		ExcludedEndpoints:    cfg.Log.ExcludedEndpoints,
		SlowRequestThreshold: time.Duration(cfg.Log.SlowRequestThreshold),
	}))
	router.Use(middleware.Recovery(opts.ErrorDomain))

	if opts.HTTPRequestMetrics != nil {
		router.Use(middleware.HTTPRequestMetrics(opts.HTTPRequestMetrics, systemEndpoints...))
	}

	if len(cfg.CORS.AllowedOrigins) != 0 {
		router.Use(middleware.CORS(middleware.CORSOpts{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	}

	if cfg.IPLimit.Enabled {
		limiter, err := iplimit.New(cfg.IPLimit.LimiterOpts())
		if err != nil {
			return fmt.Errorf("create IP rate limiter: %w", err)
		}
		ipLimitMw := middleware.IPRateLimit(limiter, opts.ErrorDomain)
		router.Use(func(next http.Handler) http.Handler {
			limited := ipLimitMw(next)
			return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				for i := range systemEndpoints {
					if r.URL.Path == systemEndpoints[i] {
						next.ServeHTTP(rw, r)
						return
					}
				}
				limited.ServeHTTP(rw, r)
			})
		})
	}

	return nil
}
