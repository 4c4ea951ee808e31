package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache/internal/client"
	"github.com/kjstillabower/weather-cache/internal/config"
	"github.com/kjstillabower/weather-cache/internal/health"
	httphandler "github.com/kjstillabower/weather-cache/internal/http"
	"github.com/kjstillabower/weather-cache/internal/lifecycle"
	"github.com/kjstillabower/weather-cache/internal/observability"
	"github.com/kjstillabower/weather-cache/internal/repository"
	"github.com/kjstillabower/weather-cache/internal/scheduler"
)

var version = "dev"

func main() {
	logger, err := observability.NewLogger("weather-cache")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPIUnits, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if !cfg.KeyConfigured() {
		logger.Warn("weather API key not configured; remote calls will fail until it is set")
	} else {
		logger.Info("weather API key configured", zap.String("key", client.MaskKey(cfg.WeatherAPIKey)))
	}

	var breaker *gobreaker.CircuitBreaker
	if cfg.CircuitBreakerEnabled {
		breaker = client.NewCircuitBreaker("weather_api", cfg.CircuitBreakerMaxRequests, cfg.CircuitBreakerInterval, cfg.CircuitBreakerTimeout,
			func(from, to gobreaker.State) {
				observability.RecordCircuitBreakerTransition(from.String(), to.String())
				logger.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			})
		weatherClient.SetCircuitBreaker(breaker)
		observability.CircuitBreakerState.Set(0)
		logger.Info("circuit breaker enabled", zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	stores, err := openStores(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	repo := repository.New(weatherClient, stores.weather, stores.favorites, logger)

	jobs := scheduler.New(repo, scheduler.Config{
		PurgeInterval: cfg.PurgeInterval,
		PurgeMaxAge:   cfg.PurgeMaxAge,
		WarmInterval:  cfg.WarmFavoritesInterval,
		JobTimeout:    cfg.RequestTimeout,
	}, logger)
	if err := jobs.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	state := lifecycle.New()
	tracker := health.NewTracker(0)
	var breakerState func() string
	if breaker != nil {
		breakerState = func() string { return breaker.State().String() }
	}
	checker := health.NewChecker(state, tracker, health.Config{
		Window:   cfg.HealthWindow,
		ErrorPct: cfg.HealthErrorPct,
	}, weatherClient.KeyConfigured(), breakerState)
	for name, fn := range stores.checks {
		checker.AddCheck(name, fn)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := &httphandler.InFlight{}
	handler := httphandler.NewHandler(repo, checker, tracker, logger, version)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		InFlight:       inFlight,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend), zap.Bool("memcached", cfg.MemcachedEnabled))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.SetShuttingDown(true)
	jobs.Stop()

	// Close the favorites feed first so open streams end and Shutdown can drain.
	stores.closeFeeds()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	if err := inFlight.Drain(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	if err := stores.close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if err := observability.FlushLogs(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "log flush: %v\n", err)
	}
	logger.Info("shutdown complete")
}
