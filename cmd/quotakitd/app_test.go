/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/log/logtest"
	"github.com/acronis/go-quotakit/marketdata"
	"github.com/acronis/go-quotakit/ratelimit"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestUpstream(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls.Inc()
		assert.Equal(t, "OANDA:XAU_USD", r.URL.Query().Get("symbol"))
		_, _ = rw.Write([]byte(`{"c": 2650.5, "t": 1740830400}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	cfg, err := loadAppConfig(config.NewLoader(config.NewViperAdapter()), "")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, ratelimit.StoreTypeMemory, cfg.RateLimit.Store.Type)
	require.Equal(t, ratelimit.DefaultQuotas(), cfg.RateLimit.Quotas)
	require.Equal(t, 15*time.Second, time.Duration(cfg.MarketData.TTL.Metals))
}

func TestLoadAppConfig_JSON(t *testing.T) {
	path := writeTestFile(t, "config.json", `{"cache": {"maxSize": 7}, "server": {"address": "127.0.0.1:9090"}}`)
	cfg, err := loadAppConfig(config.NewLoader(config.NewViperAdapter()), path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Cache.MaxSize)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
}

func TestApp(t *testing.T) {
	upstream, upstreamCalls := newTestUpstream(t)
	cfgPath := writeTestFile(t, "config.yml", fmt.Sprintf(`
server:
  address: 127.0.0.1:0
rateLimit:
  store:
    type: sql
    dsn: "sqlite://file::memory:"
    maxOpenConns: 1
  quotas:
    financial-data:
      window: 1m
      maxRequests: 2
marketdata:
  upstream:
    url: %s
    requestsPerSecond: 0
`, upstream.URL))
	cfg, err := loadAppConfig(config.NewLoader(config.NewViperAdapter()), cfgPath)
	require.NoError(t, err)

	logRecorder := logtest.NewRecorder()
	a, err := newApp(context.Background(), cfg, logRecorder)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.store.close()) })

	// HTTP server, cache cleanup and rate limit prune.
	require.Len(t, a.units, 3)

	serve := func(method, target, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		if userID != "" {
			req.Header.Set("X-User-ID", userID)
		}
		resp := httptest.NewRecorder()
		a.handler.ServeHTTP(resp, req)
		return resp
	}

	t.Run("health check includes the store", func(t *testing.T) {
		resp := serve(http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, resp.Code)
		require.JSONEq(t, `{"components":{"rate_limit_store":true}}`, resp.Body.String())
	})

	t.Run("quotes are cached and quota is enforced", func(t *testing.T) {
		for _, wantRemaining := range []string{"1", "0"} {
			resp := serve(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "u1")
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
			require.Equal(t, wantRemaining, resp.Header().Get(ratelimit.HeaderRateLimitRemaining))

			var quote marketdata.Quote
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &quote))
			require.Equal(t, "XAUUSD", quote.Symbol)
			require.Equal(t, 2650.5, quote.Price)
		}
		require.Equal(t, int32(1), upstreamCalls.Load())

		resp := serve(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "u1")
		require.Equal(t, http.StatusTooManyRequests, resp.Code)
		require.NotEmpty(t, resp.Header().Get(ratelimit.HeaderRetryAfter))

		resp = serve(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "u2")
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("cache cleanup", func(t *testing.T) {
		require.NoError(t, a.cleanupCache(context.Background()))
		require.Equal(t, 1, a.cache.Len())
	})

	t.Run("metrics", func(t *testing.T) {
		resp := serve(http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, resp.Code)
		body := resp.Body.String()
		require.Contains(t, body, "quotakit_cache_hits_total 2")
		require.Contains(t, body, `quotakit_rate_limit_decisions_total{decision="rejected",operation="financial-data"} 1`)
		require.Contains(t, body, "quotakit_http_request_duration_seconds")
		require.Contains(t, body, `quotakit_http_client_request_duration_seconds_count{host="`)
	})
}

func TestApp_UnitsWithMemoryStore(t *testing.T) {
	cfg, err := loadAppConfig(config.NewLoader(config.NewViperAdapter()), "")
	require.NoError(t, err)

	cfg.ProfServer.Enabled = true

	a, err := newApp(context.Background(), cfg, logtest.NewRecorder())
	require.NoError(t, err)
	require.Len(t, a.makeWorkers(cfg), 2)
	// HTTP server, profiling server and two workers.
	require.Len(t, a.units, 4)

	cfg.Cache.CleanupInterval = 0
	cfg.RateLimit.Prune.Interval = 0
	require.Empty(t, a.makeWorkers(cfg))
}

func TestCLI_CheckConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfgPath := writeTestFile(t, "config.yml", "cache:\n  maxSize: 10\n")
		var out bytes.Buffer
		cliApp := newCLIApp()
		cliApp.Writer = &out
		require.NoError(t, cliApp.Run([]string{"quotakitd", "--config", cfgPath, "check-config"}))
		require.Equal(t, "configuration is valid\n", out.String())
	})

	t.Run("env file overrides", func(t *testing.T) {
		const envKey = "QUOTAKIT_CACHE_MAXSIZE"
		t.Cleanup(func() { require.NoError(t, os.Unsetenv(envKey)) })
		envPath := writeTestFile(t, "test.env", envKey+"=-1\n")
		cliApp := newCLIApp()
		cliApp.Writer = &bytes.Buffer{}
		err := cliApp.Run([]string{"quotakitd", "--env-file", envPath, "check-config"})
		require.ErrorContains(t, err, "cache.maxSize: must be positive")
	})

	t.Run("missing explicit env file", func(t *testing.T) {
		cliApp := newCLIApp()
		err := cliApp.Run([]string{"quotakitd", "--env-file", filepath.Join(t.TempDir(), "absent.env"), "check-config"})
		require.ErrorContains(t, err, "load env file")
	})
}
