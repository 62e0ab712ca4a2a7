/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu             sync.RWMutex
	metricsResponseErrors *prometheus.CounterVec
)

// MustInitAndRegisterMetrics creates the response_errors_total{domain,code} counter and registers it.
// Until it's called errors are not counted. It panics if the registration fails.
func MustInitAndRegisterMetrics(namespace string, registerer prometheus.Registerer) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "restapi",
		Name:      "response_errors_total",
		Help:      "Number of error responses by error domain and code.",
	}, []string{"domain", "code"})
	registerer.MustRegister(counter)

	metricsMu.Lock()
	metricsResponseErrors = counter
	metricsMu.Unlock()
}

// UnregisterMetrics unregisters the counter and stops counting errors.
func UnregisterMetrics(registerer prometheus.Registerer) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsResponseErrors != nil {
		registerer.Unregister(metricsResponseErrors)
		metricsResponseErrors = nil
	}
}

func countResponseError(apiErr *Error) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if metricsResponseErrors != nil {
		metricsResponseErrors.WithLabelValues(apiErr.Domain, apiErr.Code).Inc()
	}
}
