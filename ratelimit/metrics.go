/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Decisions reported to MetricsCollector.
const (
	DecisionAdmitted   = "admitted"
	DecisionRejected   = "rejected"
	DecisionFailedOpen = "failed_open"
)

// MetricsCollector collects limiter decisions.
type MetricsCollector interface {
	IncDecisions(operation, decision string)
}

// PrometheusMetrics represents Prometheus metrics for the limiter.
type PrometheusMetrics struct {
	DecisionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Number of quota checks by operation and decision.",
		}, []string{"operation", "decision"}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(pm.DecisionsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister(registerer prometheus.Registerer) {
	registerer.Unregister(pm.DecisionsTotal)
}

// IncDecisions increments the number of decisions of the given kind for the operation.
func (pm *PrometheusMetrics) IncDecisions(operation, decision string) {
	pm.DecisionsTotal.WithLabelValues(operation, decision).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncDecisions(string, string) {}
