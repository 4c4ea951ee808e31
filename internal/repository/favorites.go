package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
)

// IsFavorite reads the favorites store directly. A store failure is logged
// and reported as false.
func (r *Repository) IsFavorite(ctx context.Context, city string) bool {
	_, ok, err := r.favorites.GetByCity(ctx, city)
	if err != nil {
		observability.LoggerFromContext(ctx, r.logger).Warn("favorite lookup failed", zap.String("city", city), zap.Error(err))
		return false
	}
	return ok
}

// AddFavorite bookmarks the city of rec, overwriting an existing favorite for
// the same city, and returns its id. Coordinates are copied from rec and not
// refreshed later.
func (r *Repository) AddFavorite(ctx context.Context, rec models.WeatherRecord) (int64, error) {
	if rec.CityName == "" {
		return 0, r.favoriteFailed(ctx, "add", rec.CityName, errors.New("record has no city name"))
	}
	fav := models.FavoriteCity{
		CityName:    rec.CityName,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		Country:     rec.Country,
		LastUpdated: r.now().UnixMilli(),
	}
	id, err := r.favorites.Upsert(ctx, fav)
	if err != nil {
		return 0, r.favoriteFailed(ctx, "add", rec.CityName, err)
	}
	observability.FavoriteMutationsTotal.WithLabelValues("add", "success").Inc()
	return id, nil
}

// RemoveFavorite un-bookmarks city. Removing a city that is not a favorite
// is not an error.
func (r *Repository) RemoveFavorite(ctx context.Context, city string) error {
	if err := r.favorites.DeleteByCity(ctx, city); err != nil {
		return r.favoriteFailed(ctx, "remove", city, err)
	}
	observability.FavoriteMutationsTotal.WithLabelValues("remove", "success").Inc()
	return nil
}

// RemoveFavoriteCity deletes fav, matching on its id when set and on its
// city otherwise.
func (r *Repository) RemoveFavoriteCity(ctx context.Context, fav models.FavoriteCity) error {
	if err := r.favorites.Delete(ctx, fav); err != nil {
		return r.favoriteFailed(ctx, "remove", fav.CityName, err)
	}
	observability.FavoriteMutationsTotal.WithLabelValues("remove", "success").Inc()
	return nil
}

// ListFavorites returns the current favorites ordered by city name.
func (r *Repository) ListFavorites(ctx context.Context) ([]models.FavoriteCity, error) {
	return r.favorites.List(ctx)
}

// Favorites returns a live view of the favorites list. The channel receives
// the current list at once and a new list after every add or remove, and is
// closed when ctx is done.
func (r *Repository) Favorites(ctx context.Context) (<-chan []models.FavoriteCity, error) {
	return r.favorites.Watch(ctx)
}

// favoriteFailed logs and counts a failed favorite mutation and wraps err.
func (r *Repository) favoriteFailed(ctx context.Context, op, city string, err error) error {
	observability.FavoriteMutationsTotal.WithLabelValues(op, "error").Inc()
	observability.LoggerFromContext(ctx, r.logger).Warn("favorite update failed",
		zap.String("operation", op),
		zap.String("city", city),
		zap.Error(err),
	)
	return fmt.Errorf("%s favorite %q: %w", op, city, err)
}
