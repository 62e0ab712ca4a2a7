/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is an interface for collecting metrics for client requests.
type MetricsCollector interface {
	// RequestDuration observes the duration of the request and its status code ("0" if there is no response).
	RequestDuration(requestType, host, status string, startTime time.Time)
}

// PrometheusMetricsCollector is a Prometheus metrics collector.
type PrometheusMetricsCollector struct {
	Durations *prometheus.HistogramVec
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_request_duration_seconds",
			Help:      "A histogram of the http client requests durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"type", "host", "status"}),
	}
}

// MustRegister registers the collector and panics if any error occurs.
func (p *PrometheusMetricsCollector) MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(p.Durations)
}

// Unregister cancels registration of the collector.
func (p *PrometheusMetricsCollector) Unregister(registerer prometheus.Registerer) {
	registerer.Unregister(p.Durations)
}

// RequestDuration observes the duration of the request and the status code.
func (p *PrometheusMetricsCollector) RequestDuration(requestType, host, status string, start time.Time) {
	p.Durations.WithLabelValues(requestType, host, status).Observe(time.Since(start).Seconds())
}

// MetricsRoundTripper measures durations of outgoing requests.
type MetricsRoundTripper struct {
	Delegate    http.RoundTripper
	RequestType string
	Collector   MetricsCollector
}

// RoundTrip measures the request.
func (rt *MetricsRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	status := "0"
	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	rt.Collector.RequestDuration(rt.RequestType, r.URL.Host, status, start)
	return resp, err
}
