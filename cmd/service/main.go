package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/resonantmigration/worldstate-service/internal/cache"
	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/config"
	"github.com/resonantmigration/worldstate-service/internal/geocode"
	httphandler "github.com/resonantmigration/worldstate-service/internal/http"
	"github.com/resonantmigration/worldstate-service/internal/lifecycle"
	"github.com/resonantmigration/worldstate-service/internal/observability"
	"github.com/resonantmigration/worldstate-service/internal/ratelimit"
	"github.com/resonantmigration/worldstate-service/internal/service"
	"github.com/resonantmigration/worldstate-service/internal/signals"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	newBreaker := func(provider string) *circuitbreaker.CircuitBreaker {
		if !cfg.CircuitBreakerEnabled {
			return nil
		}
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Provider:         provider,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.CircuitBreakerTransitionsTotal.WithLabelValues(provider, from.String(), to.String()).Inc()
				observability.CircuitBreakerState.WithLabelValues(provider).Set(float64(to))
			},
		})
		observability.CircuitBreakerState.WithLabelValues(provider).Set(0)
		return cb
	}
	if cfg.CircuitBreakerEnabled {
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	fetchers := service.Fetchers{
		Clima:    signals.NewClimaFetcher(cfg.OpenMeteoURL, cfg.FetchTimeout, newBreaker("open_meteo")),
		Eventos:  signals.NewEventosFetcher(cfg.GDELTURL, cfg.FetchTimeout, newBreaker("gdelt")),
		Cosmos:   signals.NewCosmosFetcher(cfg.SWPCURL, cfg.FetchTimeout, newBreaker("swpc")),
		Economia: signals.NewEconomiaFetcher(cfg.CoinGeckoURL, cfg.FetchTimeout, newBreaker("coingecko")),
		Atencion: signals.NewAtencionFetcher(cfg.WikimediaURL, cfg.FetchTimeout, newBreaker("wikimedia")),
		Tierra:   signals.NewTierraFetcher(cfg.USGSURL, cfg.FetchTimeout, newBreaker("usgs")),
		Trending: signals.NewTrendingFetcher(cfg.TwitterURL, cfg.TwitterBearerToken, cfg.EdgeFetchTimeout, newBreaker("twitter")),
		Trafico:  signals.NewTraficoFetcher(cfg.TomTomURL, cfg.TomTomAPIKey, cfg.EdgeFetchTimeout, newBreaker("tomtom")),
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	geocoder := geocode.NewNominatimResolver(cfg.NominatimURL, cfg.GeocodeTimeout)
	worldService := service.New(fetchers, cacheSvc, geocoder, service.Options{
		CacheTTL:        cfg.CacheTTL,
		Coalesce:        cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
	}, logger)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitPerMinute:   cfg.RateLimitPerMinute,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedFallbackPct:  cfg.DegradedFallbackPct,
		StartTime:            time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var globalLimiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		globalLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	var perIdentity *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		perIdentity = ratelimit.New(cfg.RateLimitPerMinute, cfg.RateLimitWindow)
	}
	handler := httphandler.NewHandler(worldService, healthConfig, logger)

	observability.RegisterWindowGauges(cfg.OverloadWindow)

	if cfg.WarmCache && len(cfg.TrackedCoordinates) > 0 {
		warmer := cache.NewWarmer(worldService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, cfg.TrackedCoordinates); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), cfg.TrackedCoordinates, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	stateRouter := router.PathPrefix("/world-state").Subrouter()
	stateRouter.Use(httphandler.RateLimitMiddleware(globalLimiter, perIdentity))
	stateRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	stateRouter.HandleFunc("", handler.GetWorldState).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
