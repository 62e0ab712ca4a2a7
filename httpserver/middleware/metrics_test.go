/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/testutil"
)

func TestHTTPRequestMetrics(t *testing.T) {
	collector := NewHTTPRequestMetricsCollector("")
	registry := prometheus.NewRegistry()
	collector.MustRegister(registry)
	defer collector.Unregister(registry)

	router := chi.NewRouter()
	router.Use(HTTPRequestMetrics(collector, "/healthz"))
	router.Get("/quotes/{symbol}", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	router.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/quotes/XAUUSD", "/quotes/USOIL", "/healthz"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 1, promtestutil.CollectAndCount(collector.Durations))
	testutil.RequireSamplesCountInHistogram(t, collector.Durations.WithLabelValues(http.MethodGet, "/quotes/{symbol}", "200"), 2)
	testutil.RequireMetricValue(t, collector.InFlight, 0)
}
