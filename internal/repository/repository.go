// Package repository decides per request whether to serve cached weather or
// fetch it live, keeps the cache filled from successful fetches, and manages
// favorite cities.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/client"
	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
	"github.com/kjstillabower/weather-cache/internal/store"
)

// FreshnessWindow is how long a cached snapshot is served without contacting
// the remote source.
const FreshnessWindow = 30 * time.Minute

// fallbackReadTimeout bounds the cache read made after a failed remote call.
const fallbackReadTimeout = 5 * time.Second

// Repository mediates between the remote source and the local stores.
// Concurrent fetches for the same city are not coalesced; each one that
// misses calls the remote source and the last write wins.
type Repository struct {
	remote    client.WeatherSource
	weather   store.WeatherStore
	favorites store.FavoriteStore
	logger    *zap.Logger
	now       func() time.Time
	misses    *missTracker
}

// New constructs a Repository. logger is used when the request context does
// not carry one.
func New(remote client.WeatherSource, weather store.WeatherStore, favorites store.FavoriteStore, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		remote:    remote,
		weather:   weather,
		favorites: favorites,
		logger:    logger,
		now:       time.Now,
		misses:    newMissTracker(),
	}
}

// isCacheValid reports whether a snapshot taken at lastUpdated (epoch ms) is
// still inside the freshness window.
func (r *Repository) isCacheValid(lastUpdated int64) bool {
	return r.now().UnixMilli()-lastUpdated < FreshnessWindow.Milliseconds()
}

// FetchByCity returns weather for city. Unless forceRefresh is set, a fresh
// cached snapshot is returned without contacting the remote source. When the
// remote call fails, any cached snapshot for city is returned with Stale set.
// A *FetchError is returned only when there is nothing to fall back on.
func (r *Repository) FetchByCity(ctx context.Context, city string, forceRefresh bool) (models.WeatherRecord, error) {
	logger := observability.LoggerFromContext(ctx, r.logger)
	key := store.Key(city)

	if !forceRefresh {
		cached, ok, err := r.getCached(ctx, city)
		switch {
		case err != nil:
			logger.Warn("cache read failed", zap.String("city", city), zap.Error(err))
			observability.CacheMissesTotal.WithLabelValues("error").Inc()
		case !ok:
			observability.CacheMissesTotal.WithLabelValues("absent").Inc()
		case r.isCacheValid(cached.LastUpdated):
			observability.CacheHitsTotal.Inc()
			logger.Debug("cache hit", zap.String("city", city))
			return cached, nil
		default:
			observability.CacheMissesTotal.WithLabelValues("stale").Inc()
		}
	} else {
		observability.CacheMissesTotal.WithLabelValues("forced").Inc()
	}

	if n := r.misses.start(key); n > 1 {
		observability.ConcurrentMissesTotal.Inc()
		logger.Debug("concurrent fetch for city", zap.String("city", city), zap.Int("inFlight", n))
	}
	rec, err := r.remote.GetByCity(ctx, city)
	r.misses.done(key)

	if err == nil {
		return r.save(ctx, logger, rec), nil
	}

	fetchErr := newFetchError(err)
	observability.RemoteErrorsTotal.WithLabelValues(string(fetchErr.Category)).Inc()
	logger.Warn("remote fetch failed",
		zap.String("city", city),
		zap.String("category", string(fetchErr.Category)),
		zap.Error(err),
	)

	// The remote call may have failed on ctx's own deadline; the fallback
	// read must still run.
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackReadTimeout)
	fallback, ok, cacheErr := r.getCached(readCtx, city)
	cancel()
	if cacheErr != nil {
		logger.Warn("fallback cache read failed", zap.String("city", city), zap.Error(cacheErr))
	}
	if ok {
		age := r.now().Sub(fallback.UpdatedAt())
		observability.StaleCacheServesTotal.Inc()
		observability.StaleCacheAgeSeconds.Observe(age.Seconds())
		logger.Info("serving cached weather after remote failure", zap.String("city", city), zap.Duration("age", age))
		fallback.Stale = true
		return fallback, nil
	}
	return models.WeatherRecord{}, fetchErr
}

// FetchByCoordinates always calls the remote source and caches the result
// under the city name it returns. There is no fallback.
func (r *Repository) FetchByCoordinates(ctx context.Context, lat, lon float64) (models.WeatherRecord, error) {
	logger := observability.LoggerFromContext(ctx, r.logger)

	rec, err := r.remote.GetByCoordinates(ctx, lat, lon)
	if err != nil {
		fetchErr := newFetchError(err)
		observability.RemoteErrorsTotal.WithLabelValues(string(fetchErr.Category)).Inc()
		logger.Warn("remote fetch by coordinates failed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.String("category", string(fetchErr.Category)),
			zap.Error(err),
		)
		return models.WeatherRecord{}, fetchErr
	}

	if store.Key(rec.CityName) == "" {
		logger.Warn("remote returned no city name, not caching", zap.Float64("lat", lat), zap.Float64("lon", lon))
		return rec, nil
	}
	return r.save(ctx, logger, rec), nil
}

// CachedWeather lists every cached snapshot, most recent first.
func (r *Repository) CachedWeather(ctx context.Context) ([]models.WeatherRecord, error) {
	start := time.Now()
	list, err := r.weather.List(ctx)
	observeStore("list", start, err)
	return list, err
}

// PurgeCache drops the cached snapshot for city. Favorites are not touched.
func (r *Repository) PurgeCache(ctx context.Context, city string) error {
	start := time.Now()
	err := r.weather.Delete(ctx, city)
	observeStore("delete", start, err)
	return err
}

// PurgeAll drops every cached snapshot.
func (r *Repository) PurgeAll(ctx context.Context) error {
	start := time.Now()
	err := r.weather.DeleteAll(ctx)
	observeStore("delete_all", start, err)
	return err
}

// PurgeOlderThan drops snapshots older than age and returns how many went.
func (r *Repository) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	start := time.Now()
	cutoff := r.now().Add(-age).UnixMilli()
	n, err := r.weather.DeleteOlderThan(ctx, cutoff)
	observeStore("delete_older_than", start, err)
	if err == nil && n > 0 {
		observability.PurgedRecordsTotal.Add(float64(n))
	}
	return n, err
}

func (r *Repository) getCached(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	start := time.Now()
	rec, ok, err := r.weather.Get(ctx, city)
	observeStore("get", start, err)
	return rec, ok, err
}

// save stamps rec with the repository clock, upserts it and returns the
// stamped record. A failed write is logged; the caller still gets the record.
func (r *Repository) save(ctx context.Context, logger *zap.Logger, rec models.WeatherRecord) models.WeatherRecord {
	start := time.Now()
	rec.Stale = false
	rec.LastUpdated = r.now().UnixMilli()
	err := r.weather.Upsert(ctx, rec)
	observeStore("upsert", start, err)
	if err != nil {
		logger.Warn("cache write failed", zap.String("city", rec.CityName), zap.Error(err))
	}
	return rec
}

func observeStore(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		if !errors.Is(err, context.Canceled) {
			observability.StoreErrorsTotal.WithLabelValues(operation).Inc()
		}
	}
	observability.StoreOperationDurationSeconds.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}
