package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/config"
	"github.com/kjstillabower/weather-cache/internal/health"
	"github.com/kjstillabower/weather-cache/internal/observability"
	"github.com/kjstillabower/weather-cache/internal/store"
	"github.com/kjstillabower/weather-cache/internal/store/memcached"
	"github.com/kjstillabower/weather-cache/internal/store/memory"
	"github.com/kjstillabower/weather-cache/internal/store/sqlstore"
)

// stores is the storage stack selected by config.
type stores struct {
	weather   store.WeatherStore
	favorites store.FavoriteStore
	checks    map[string]health.CheckFunc
	closers   []func() error
	feed      *store.Feed
}

// openStores builds the backing store for cfg.StoreBackend and layers
// memcached over the weather store when enabled.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	s := &stores{checks: map[string]health.CheckFunc{}}

	switch cfg.StoreBackend {
	case "sqlite", "postgres":
		dialect, dsn := sqlstore.SQLite, cfg.SQLitePath
		if cfg.StoreBackend == "postgres" {
			dialect, dsn = sqlstore.Postgres, cfg.PostgresDSN
		}
		db, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
		}
		favorites := db.Favorites()
		s.weather = db.Weather()
		s.favorites = favorites
		s.feed = favorites.Feed()
		s.checks["store"] = db.Ping
		s.closers = append(s.closers, db.Close)
	default:
		favorites := memory.NewFavoriteStore()
		s.weather = memory.NewWeatherStore()
		s.favorites = favorites
		s.feed = favorites.Feed()
	}
	s.feed.OnSubscribersChanged = func(n int) {
		observability.FavoriteSubscribers.Set(float64(n))
	}
	logger.Info("store backend ready", zap.String("backend", cfg.StoreBackend))

	if cfg.MemcachedEnabled {
		mc := memcached.New(s.weather, cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.MemcachedTTL)
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached not reachable at startup", zap.String("addrs", cfg.MemcachedAddrs), zap.Error(err))
		}
		s.weather = mc
		s.checks["memcached"] = func(context.Context) error { return mc.Ping() }
		// Closed before the backing store.
		s.closers = append([]func() error{mc.Close}, s.closers...)
		logger.Info("memcached layer enabled", zap.String("addrs", cfg.MemcachedAddrs), zap.Duration("ttl", cfg.MemcachedTTL))
	}
	return s, nil
}

// closeFeeds ends every favorites subscription.
func (s *stores) closeFeeds() {
	s.feed.Close()
}

func (s *stores) close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
