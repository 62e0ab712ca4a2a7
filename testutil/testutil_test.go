/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeT struct {
	failed bool
}

func (t *fakeT) Errorf(string, ...interface{}) { t.failed = true }

func (t *fakeT) FailNow() {
	t.failed = true
	panic(t)
}

func runFake(f func(t require.TestingT)) (failed bool) {
	ft := &fakeT{}
	defer func() {
		if r := recover(); r != nil && r != ft {
			panic(r)
		}
		failed = ft.failed
	}()
	f(ft)
	return
}

func TestRequireErrorInRecorder(t *testing.T) {
	resp := httptest.NewRecorder()
	resp.Header().Set("Content-Type", "application/json; charset=utf-8")
	resp.WriteHeader(http.StatusNotFound)
	_, _ = resp.WriteString(`{"error":{"domain":"QuotaKit","code":"notFound","message":"Not found."}}`)

	RequireErrorInRecorder(t, resp, http.StatusNotFound, "QuotaKit", "notFound")
	require.True(t, runFake(func(ft require.TestingT) {
		RequireErrorInRecorder(ft, resp, http.StatusNotFound, "QuotaKit", "internalError")
	}))
	require.True(t, runFake(func(ft require.TestingT) {
		RequireErrorInRecorder(ft, resp, http.StatusBadRequest, "QuotaKit", "notFound")
	}))
}

func TestRequireJSONInRecorder(t *testing.T) {
	resp := httptest.NewRecorder()
	resp.Header().Set("Content-Type", "application/json")
	_, _ = resp.WriteString(`{"entries":3}`)

	var got struct {
		Entries int `json:"entries"`
	}
	RequireJSONInRecorder(t, resp, http.StatusOK, &got)
	require.Equal(t, 3, got.Entries)

	plain := httptest.NewRecorder()
	_, _ = plain.WriteString(`{"entries":3}`)
	require.True(t, runFake(func(ft require.TestingT) {
		RequireJSONInRecorder(ft, plain, http.StatusOK, &got)
	}))
}

func TestRequireSamplesCountInHistogram(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration_seconds"}, []string{"status"})
	hist := vec.WithLabelValues("200")
	hist.Observe(0.1)
	hist.Observe(0.2)
	RequireSamplesCountInHistogram(t, hist, 2)
	require.True(t, runFake(func(ft require.TestingT) {
		RequireSamplesCountInHistogram(ft, hist, 1)
	}))
}

func TestRequireMetricValue(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total"})
	counter.Add(3)
	RequireMetricValue(t, counter, 3)
}

func TestRequireNoErrorInChannel(t *testing.T) {
	errs := make(chan error, 1)
	RequireNoErrorInChannel(t, errs)
	errs <- errors.New("boom")
	require.True(t, runFake(func(ft require.TestingT) {
		RequireNoErrorInChannel(ft, errs)
	}))
}
