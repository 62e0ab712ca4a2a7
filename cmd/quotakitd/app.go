/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-quotakit/httpapi"
	"github.com/acronis/go-quotakit/httpclient"
	"github.com/acronis/go-quotakit/httpserver"
	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/marketdata"
	"github.com/acronis/go-quotakit/profserver"
	"github.com/acronis/go-quotakit/ratelimit"
	"github.com/acronis/go-quotakit/ratelimit/redisstore"
	"github.com/acronis/go-quotakit/ratelimit/sqlstore"
	"github.com/acronis/go-quotakit/reqcache"
	"github.com/acronis/go-quotakit/restapi"
	"github.com/acronis/go-quotakit/service"
)

const (
	metricsNamespace = "quotakit"
	errorDomain      = "QuotaKit"
	serviceNameInURL = "edge"

	workerStopTimeout     = 5 * time.Second
	sqlSlowQueryThreshold = time.Second
)

// limiterStore is a request log store together with its health check and cleanup.
type limiterStore struct {
	ratelimit.LogStore
	ping  httpserver.HealthCheck
	close func() error
}

type app struct {
	logger   log.FieldLogger
	registry *prometheus.Registry
	cache    *reqcache.Cache[marketdata.Quote]
	limiter  *ratelimit.Limiter
	store    limiterStore
	handler  http.Handler
	units    []service.Unit
}

func newApp(ctx context.Context, cfg *AppConfig, logger log.FieldLogger) (*app, error) {
	a := &app{logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	restapi.MustInitAndRegisterMetrics(metricsNamespace, a.registry)

	cacheMetrics := reqcache.NewPrometheusMetrics(reqcache.PrometheusMetricsOpts{Namespace: metricsNamespace})
	cacheMetrics.MustRegister(a.registry)
	var err error
	if a.cache, err = reqcache.New[marketdata.Quote](cfg.Cache.Opts(logger.With(log.String("component", "reqcache")), cacheMetrics)); err != nil {
		return nil, fmt.Errorf("create request cache: %w", err)
	}

	if a.store, err = openLimiterStore(ctx, cfg.RateLimit, logger); err != nil {
		return nil, err
	}
	limiterMetrics := ratelimit.NewPrometheusMetrics(metricsNamespace)
	limiterMetrics.MustRegister(a.registry)
	a.limiter = ratelimit.NewLimiter(a.store, cfg.RateLimit.LimiterOpts(logger.With(log.String("component", "ratelimit")), limiterMetrics))

	clientMetrics := httpclient.NewPrometheusMetricsCollector(metricsNamespace)
	clientMetrics.MustRegister(a.registry)
	quotes, err := newQuoteService(cfg.MarketData, a.cache, clientMetrics, logger)
	if err != nil {
		_ = a.store.close()
		return nil, err
	}

	httpMetrics := middleware.NewHTTPRequestMetricsCollector(metricsNamespace)
	httpMetrics.MustRegister(a.registry)
	healthChecks := map[string]httpserver.HealthCheck{}
	if a.store.ping != nil {
		healthChecks["rate_limit_store"] = a.store.ping
	}
	apiHandler := &httpapi.Handler{Quotas: a.limiter, Quotes: quotes, Cache: a.cache, ErrorDomain: errorDomain}
	router, err := httpserver.NewRouter(cfg.Server, logger, httpserver.RouterOpts{
		ServiceNameInURL:   serviceNameInURL,
		APIRoutes:          map[httpserver.APIVersion]httpserver.APIRoute{1: apiHandler.Routes},
		ErrorDomain:        errorDomain,
		HealthChecks:       healthChecks,
		MetricsHandler:     promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		HTTPRequestMetrics: httpMetrics,
	})
	if err != nil {
		_ = a.store.close()
		return nil, fmt.Errorf("create router: %w", err)
	}
	a.handler = router

	a.units = append(a.units, httpserver.New(cfg.Server, logger, router, nil))
	if cfg.ProfServer.Enabled {
		a.units = append(a.units, profserver.New(cfg.ProfServer, logger.With(log.String("component", "profserver")), nil))
	}
	for _, w := range a.makeWorkers(cfg) {
		a.units = append(a.units, service.NewWorkerUnit(w, workerStopTimeout))
	}
	return a, nil
}

func newQuoteService(
	cfg *marketdata.Config, cache *reqcache.Cache[marketdata.Quote], clientMetrics httpclient.MetricsCollector, logger log.FieldLogger,
) (*marketdata.Service, error) {
	logger = logger.With(log.String("component", "marketdata"))
	source, err := marketdata.NewHTTPPriceSource(cfg.PriceSourceOpts(logger, clientMetrics))
	if err != nil {
		return nil, fmt.Errorf("create price source: %w", err)
	}
	return marketdata.NewService(cache, source, cfg.ServiceOpts(logger)), nil
}

func openLimiterStore(ctx context.Context, cfg *ratelimit.Config, logger log.FieldLogger) (limiterStore, error) {
	switch cfg.Store.Type {
	case ratelimit.StoreTypeSQL:
		store, err := sqlstore.Open(cfg.Store.DSN, sqlstore.Opts{
			MaxOpenConns:       cfg.Store.MaxOpenConns,
			Logger:             logger.With(log.String("component", "sqlstore")),
			SlowQueryThreshold: sqlSlowQueryThreshold,
		})
		if err != nil {
			return limiterStore{}, fmt.Errorf("open sql store: %w", err)
		}
		if err = store.Migrate(ctx); err != nil {
			_ = store.Close()
			return limiterStore{}, err
		}
		return limiterStore{LogStore: store, ping: store.Ping, close: store.Close}, nil

	case ratelimit.StoreTypeRedis:
		store, err := redisstore.Dial(ctx, cfg.Store.RedisURL, redisstore.Opts{
			KeyPrefix: cfg.Store.RedisKeyPrefix,
			KeyTTL:    cfg.LongestWindow(),
		})
		if err != nil {
			return limiterStore{}, fmt.Errorf("open redis store: %w", err)
		}
		return limiterStore{LogStore: store, ping: store.Ping, close: store.Close}, nil

	default:
		return limiterStore{LogStore: ratelimit.NewMemoryStore(), close: func() error { return nil }}, nil
	}
}

func (a *app) makeWorkers(cfg *AppConfig) []service.Worker {
	var workers []service.Worker

	if interval := time.Duration(cfg.Cache.CleanupInterval); interval > 0 {
		workers = append(workers, service.NewPeriodicWorker("cache_cleanup", service.WorkerFunc(a.cleanupCache), interval, a.logger))
	}

	if pruner, ok := a.store.LogStore.(ratelimit.Pruner); ok && cfg.RateLimit.Prune.Interval > 0 {
		retention := time.Duration(cfg.RateLimit.Prune.Retention)
		prune := func(ctx context.Context) error {
			n, err := pruner.DeleteBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("prune rate limit records: %w", err)
			}
			a.logger.Info("rate limit records pruned", log.Int("count", n), log.Duration("retention", retention))
			return nil
		}
		workers = append(workers,
			service.NewPeriodicWorker("rate_limit_prune", service.WorkerFunc(prune), time.Duration(cfg.RateLimit.Prune.Interval), a.logger))
	}

	return workers
}

func (a *app) cleanupCache(_ context.Context) error {
	if n := a.cache.Cleanup(); n > 0 {
		a.logger.Debug("stale cache entries removed", log.Int("count", n))
	}
	return nil
}

// run blocks until ctx is done or a shutdown signal is received.
func (a *app) run(ctx context.Context) error {
	defer func() {
		if err := a.store.close(); err != nil {
			a.logger.Error("failed to close rate limit store", log.Error(err))
		}
	}()
	return service.New(a.logger, service.NewCompositeUnit(a.units...)).Run(ctx)
}
