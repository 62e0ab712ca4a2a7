/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/log/logtest"
)

func TestLogging(t *testing.T) {
	logger := logtest.NewRecorder()
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		GetLoggerFromContext(r.Context()).Info("inside handler")
		rw.WriteHeader(http.StatusTeapot)
		_, _ = rw.Write([]byte("short and stout"))
	})
	h := RequestID()(ClientIP(false)(Logging(logger, LoggingOpts{})(next)))

	req := httptest.NewRequest(http.MethodGet, "/api/edge/v1/quotas/ai-chat?x=1", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.RemoteAddr = "10.0.0.7:51234"
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	require.Equal(t, http.StatusTeapot, resp.Code)
	entries := logger.Entries()
	require.Len(t, entries, 2)

	inner := entries[0]
	require.Equal(t, "inside handler", inner.Text)
	requireStringField(t, inner, "request_id", "req-1")
	requireStringField(t, inner, "client_ip", "10.0.0.7")

	completed := entries[1]
	require.True(t, strings.HasPrefix(completed.Text, "response completed in "))
	require.Equal(t, log.LevelInfo, completed.Level)
	requireStringField(t, completed, "method", http.MethodGet)
	requireStringField(t, completed, "uri", "/api/edge/v1/quotas/ai-chat?x=1")
	status, ok := completed.FindField("status")
	require.True(t, ok)
	require.EqualValues(t, http.StatusTeapot, status.Int)
	bytesSent, ok := completed.FindField("bytes_sent")
	require.True(t, ok)
	require.EqualValues(t, len("short and stout"), bytesSent.Int)
}

func TestLogging_ExcludedEndpoints(t *testing.T) {
	logger := logtest.NewRecorder()
	status := http.StatusOK
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(status)
	})
	h := Logging(logger, LoggingOpts{ExcludedEndpoints: []string{"/healthz"}})(next)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Empty(t, logger.Entries())

	status = http.StatusServiceUnavailable
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Len(t, logger.Entries(), 1, "failed responses are logged even for excluded endpoints")
}

func TestLogging_SlowRequest(t *testing.T) {
	logger := logtest.NewRecorder()
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	})
	h := Logging(logger, LoggingOpts{SlowRequestThreshold: 10 * time.Millisecond})(next)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	require.Len(t, logger.EntriesAtLevel(log.LevelWarn), 1)
}

func TestRequestID(t *testing.T) {
	var gotID string
	h := RequestID()(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotID = GetRequestIDFromContext(r.Context())
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, gotID)
	require.Equal(t, gotID, resp.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "external-id")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, "external-id", gotID)
	require.Equal(t, "external-id", resp.Header().Get(HeaderRequestID))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name         string
		trustForward bool
		remoteAddr   string
		headers      map[string]string
		wantIP       string
	}{
		{name: "peer address", remoteAddr: "192.0.2.1:1234", wantIP: "192.0.2.1"},
		{
			name:       "forwarded headers are ignored when not trusted",
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			wantIP:     "192.0.2.1",
		},
		{
			name:         "first X-Forwarded-For entry",
			trustForward: true,
			remoteAddr:   "192.0.2.1:1234",
			headers:      map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			wantIP:       "203.0.113.5",
		},
		{
			name:         "X-Real-IP",
			trustForward: true,
			remoteAddr:   "192.0.2.1:1234",
			headers:      map[string]string{"X-Real-IP": "203.0.113.9"},
			wantIP:       "203.0.113.9",
		},
		{name: "remote address without port", remoteAddr: "192.0.2.1", wantIP: "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIP string
			h := ClientIP(tt.trustForward)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				gotIP = GetClientIPFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.wantIP, gotIP)
		})
	}
}

func requireStringField(t *testing.T, entry logtest.RecordedEntry, key, want string) {
	t.Helper()
	field, ok := entry.FindField(key)
	require.True(t, ok, "field %q not found", key)
	require.Equal(t, want, string(field.Bytes))
}
