/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package reqcache

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how (effectively or not) cache is used.
type MetricsCollector interface {
	// SetAmount sets the total number of entries in the cache.
	SetAmount(int)

	// IncHits increments the total number of fresh entries returned without calling the fetcher.
	IncHits()

	// IncMisses increments the total number of lookups that required calling the fetcher.
	IncMisses()

	// AddEvictions increments the total number of entries evicted because of the capacity limit.
	AddEvictions(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents a Prometheus metrics for the cache.
type PrometheusMetrics struct {
	EntriesAmount  prometheus.Gauge
	HitsTotal      prometheus.Counter
	MissesTotal    prometheus.Counter
	EvictionsTotal prometheus.Counter
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetrics(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_entries_amount",
			Help:        "Total number of entries in the cache.",
			ConstLabels: opts.ConstLabels,
		}),
		HitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_hits_total",
			Help:        "Number of lookups served from a fresh cache entry.",
			ConstLabels: opts.ConstLabels,
		}),
		MissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_misses_total",
			Help:        "Number of lookups that called the fetcher.",
			ConstLabels: opts.ConstLabels,
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_evictions_total",
			Help:        "Number of entries evicted because the cache was full.",
			ConstLabels: opts.ConstLabels,
		}),
	}
}

// Collectors returns all Prometheus collectors, so they can be registered in a custom registry.
func (pm *PrometheusMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{pm.EntriesAmount, pm.HitsTotal, pm.MissesTotal, pm.EvictionsTotal}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(pm.Collectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister(registerer prometheus.Registerer) {
	for _, c := range pm.Collectors() {
		registerer.Unregister(c)
	}
}

// SetAmount sets the total number of entries in the cache.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.Set(float64(amount))
}

// IncHits increments the total number of cache hits.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.Inc()
}

// IncMisses increments the total number of cache misses.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.Inc()
}

// AddEvictions increments the total number of evicted entries.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)    {}
func (disabledMetrics) IncHits()         {}
func (disabledMetrics) IncMisses()       {}
func (disabledMetrics) AddEvictions(int) {}
