/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// RequireSamplesCountInHistogram asserts that the histogram has observed exactly wantSamplesCount values.
func RequireSamplesCountInHistogram(t require.TestingT, hist prometheus.Observer, wantSamplesCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	collector, ok := hist.(prometheus.Collector)
	require.True(t, ok, "observer is not a collector")
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(collector))
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].GetMetric(), 1)
	require.Equal(t, wantSamplesCount, int(families[0].GetMetric()[0].GetHistogram().GetSampleCount()))
}

// RequireMetricValue asserts that a single-series collector (counter or gauge) has the given value.
func RequireMetricValue(t require.TestingT, metric prometheus.Collector, want float64) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, want, promtestutil.ToFloat64(metric))
}
