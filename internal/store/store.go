// Package store defines the local persistence contracts for cached weather
// snapshots and favorite cities, plus the change feed shared by favorites
// implementations.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/kjstillabower/weather-cache/internal/models"
)

var (
	// ErrNotFound is returned by lookups that address a row by id.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an update would give two favorites the same city.
	ErrConflict = errors.New("conflict")
)

// WeatherStore keeps at most one WeatherRecord per city key. Upsert replaces
// the whole record.
type WeatherStore interface {
	// Get returns (record, true, nil) on hit and (zero, false, nil) on miss.
	Get(ctx context.Context, city string) (models.WeatherRecord, bool, error)
	// List returns all records, most recently updated first.
	List(ctx context.Context) ([]models.WeatherRecord, error)
	Upsert(ctx context.Context, rec models.WeatherRecord) error
	Delete(ctx context.Context, city string) error
	DeleteAll(ctx context.Context) error
	// DeleteOlderThan removes records with LastUpdated < cutoff (epoch ms) and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// FavoriteStore keeps at most one FavoriteCity per city key.
type FavoriteStore interface {
	// List returns favorites ordered by city name.
	List(ctx context.Context) ([]models.FavoriteCity, error)
	// Watch delivers the current list immediately and again after every
	// mutation until ctx is done, then closes the channel. Slow readers only
	// ever see the latest list.
	Watch(ctx context.Context) (<-chan []models.FavoriteCity, error)
	GetByCity(ctx context.Context, city string) (models.FavoriteCity, bool, error)
	GetByID(ctx context.Context, id int64) (models.FavoriteCity, error)
	// Upsert inserts fav or overwrites the favorite with the same city and
	// returns its id.
	Upsert(ctx context.Context, fav models.FavoriteCity) (int64, error)
	// Update rewrites the favorite with fav.ID.
	Update(ctx context.Context, fav models.FavoriteCity) error
	// Delete removes fav by id when set, otherwise by city. Absent rows are not an error.
	Delete(ctx context.Context, fav models.FavoriteCity) error
	DeleteByCity(ctx context.Context, city string) error
	DeleteAll(ctx context.Context) error
}

// Key normalizes a city name into the lookup key used by every store.
func Key(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
