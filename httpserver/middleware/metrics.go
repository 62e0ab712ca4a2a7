/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	httpRequestMetricsLabelMethod       = "method"
	httpRequestMetricsLabelRoutePattern = "route_pattern"
	httpRequestMetricsLabelStatusCode   = "status_code"
)

// DefaultHTTPRequestDurationBuckets is default buckets into which observations of serving HTTP requests are counted.
var DefaultHTTPRequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// HTTPRequestMetricsCollector represents collector of metrics for incoming HTTP requests.
type HTTPRequestMetricsCollector struct {
	Durations *prometheus.HistogramVec
	InFlight  prometheus.Gauge
}

// NewHTTPRequestMetricsCollector creates a new metrics collector.
func NewHTTPRequestMetricsCollector(namespace string) *HTTPRequestMetricsCollector {
	return &HTTPRequestMetricsCollector{
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "A histogram of the HTTP request durations.",
				Buckets:   DefaultHTTPRequestDurationBuckets,
			},
			[]string{httpRequestMetricsLabelMethod, httpRequestMetricsLabelRoutePattern, httpRequestMetricsLabelStatusCode},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (c *HTTPRequestMetricsCollector) MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(c.Durations, c.InFlight)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (c *HTTPRequestMetricsCollector) Unregister(registerer prometheus.Registerer) {
	registerer.Unregister(c.InFlight)
	registerer.Unregister(c.Durations)
}

// HTTPRequestMetrics is a middleware that collects metrics for incoming HTTP requests using Prometheus data types.
// Requests to excludedEndpoints are not observed.
func HTTPRequestMetrics(collector *HTTPRequestMetricsCollector, excludedEndpoints ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if isExcludedEndpoint(r.URL.Path, excludedEndpoints) {
				next.ServeHTTP(rw, r)
				return
			}

			startTime := GetRequestStartTimeFromContext(r.Context())
			if startTime.IsZero() {
				startTime = time.Now()
				r = r.WithContext(NewContextWithRequestStartTime(r.Context(), startTime))
			}

			collector.InFlight.Inc()
			defer collector.InFlight.Dec()

			wrw, ok := rw.(chimw.WrapResponseWriter)
			if !ok {
				wrw = chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
			}
			defer func() {
				status := wrw.Status()
				if p := recover(); p != nil {
					if p != http.ErrAbortHandler { //nolint:errorlint
						collector.observe(r, http.StatusInternalServerError, startTime)
					}
					panic(p)
				}
				if status == 0 {
					status = http.StatusOK
				}
				collector.observe(r, status, startTime)
			}()

			next.ServeHTTP(wrw, r)
		})
	}
}

func (c *HTTPRequestMetricsCollector) observe(r *http.Request, status int, startTime time.Time) {
	c.Durations.With(prometheus.Labels{
		httpRequestMetricsLabelMethod:       r.Method,
		httpRequestMetricsLabelRoutePattern: routePattern(r),
		httpRequestMetricsLabelStatusCode:   strconv.Itoa(status),
	}).Observe(time.Since(startTime).Seconds())
}

// routePattern returns the chi route pattern so that path parameters don't blow up label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
