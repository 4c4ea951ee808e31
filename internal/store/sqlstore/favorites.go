package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/store"
)

const favoriteColumns = `id, city_name, latitude, longitude, country, last_updated`

// FavoriteStore is the SQL-backed store.FavoriteStore. Mutations made through
// this value are published to its watchers; writes from other processes are not.
type FavoriteStore struct {
	db *DB
	// mu serializes mutations with their feed publish.
	mu   sync.Mutex
	feed *store.Feed
}

var _ store.FavoriteStore = (*FavoriteStore)(nil)

// Favorites returns a favorites store backed by d. Call once and share the
// result so every watcher sees every mutation.
func (d *DB) Favorites() *FavoriteStore {
	return &FavoriteStore{db: d, feed: store.NewFeed()}
}

// Feed exposes the change feed.
func (s *FavoriteStore) Feed() *store.Feed {
	return s.feed
}

// Close ends every Watch subscription. It does not close the DB.
func (s *FavoriteStore) Close() error {
	s.feed.Close()
	return nil
}

func scanFavorite(row scanner) (models.FavoriteCity, error) {
	var fav models.FavoriteCity
	err := row.Scan(&fav.ID, &fav.CityName, &fav.Latitude, &fav.Longitude, &fav.Country, &fav.LastUpdated)
	return fav, err
}

func (s *FavoriteStore) List(ctx context.Context) ([]models.FavoriteCity, error) {
	rows, err := s.db.query(ctx, `SELECT `+favoriteColumns+` FROM favorite_cities ORDER BY city_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	out := []models.FavoriteCity{}
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("list favorites: %w", err)
		}
		out = append(out, fav)
	}
	return out, rows.Err()
}

func (s *FavoriteStore) Watch(ctx context.Context) (<-chan []models.FavoriteCity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.feed.Subscribe(ctx, list), nil
}

func (s *FavoriteStore) GetByCity(ctx context.Context, city string) (models.FavoriteCity, bool, error) {
	fav, err := scanFavorite(s.db.queryRow(ctx, `SELECT `+favoriteColumns+` FROM favorite_cities WHERE city_key = ?`, store.Key(city)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.FavoriteCity{}, false, nil
	}
	if err != nil {
		return models.FavoriteCity{}, false, fmt.Errorf("get favorite %q: %w", city, err)
	}
	return fav, true, nil
}

func (s *FavoriteStore) GetByID(ctx context.Context, id int64) (models.FavoriteCity, error) {
	fav, err := scanFavorite(s.db.queryRow(ctx, `SELECT `+favoriteColumns+` FROM favorite_cities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.FavoriteCity{}, store.ErrNotFound
	}
	if err != nil {
		return models.FavoriteCity{}, fmt.Errorf("get favorite %d: %w", id, err)
	}
	return fav, nil
}

func (s *FavoriteStore) Upsert(ctx context.Context, fav models.FavoriteCity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.queryRow(ctx, `INSERT INTO favorite_cities (city_key, city_name, latitude, longitude, country, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (city_key) DO UPDATE SET
			city_name = excluded.city_name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			country = excluded.country,
			last_updated = excluded.last_updated
		RETURNING id`,
		store.Key(fav.CityName), fav.CityName, fav.Latitude, fav.Longitude, fav.Country, fav.LastUpdated,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert favorite %q: %w", fav.CityName, err)
	}
	s.publish(ctx)
	return id, nil
}

func (s *FavoriteStore) Update(ctx context.Context, fav models.FavoriteCity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.exec(ctx, `UPDATE favorite_cities
		SET city_key = ?, city_name = ?, latitude = ?, longitude = ?, country = ?, last_updated = ?
		WHERE id = ?`,
		store.Key(fav.CityName), fav.CityName, fav.Latitude, fav.Longitude, fav.Country, fav.LastUpdated, fav.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update favorite %d: %w", fav.ID, store.ErrConflict)
		}
		return fmt.Errorf("update favorite %d: %w", fav.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	s.publish(ctx)
	return nil
}

func (s *FavoriteStore) Delete(ctx context.Context, fav models.FavoriteCity) error {
	if fav.ID == 0 {
		return s.DeleteByCity(ctx, fav.CityName)
	}
	return s.mutate(ctx, `DELETE FROM favorite_cities WHERE id = ?`, fav.ID)
}

func (s *FavoriteStore) DeleteByCity(ctx context.Context, city string) error {
	return s.mutate(ctx, `DELETE FROM favorite_cities WHERE city_key = ?`, store.Key(city))
}

func (s *FavoriteStore) DeleteAll(ctx context.Context) error {
	return s.mutate(ctx, `DELETE FROM favorite_cities`)
}

func (s *FavoriteStore) mutate(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	s.publish(ctx)
	return nil
}

// publish must be called with s.mu held. A failed reload skips the update;
// watchers catch up on the next mutation.
func (s *FavoriteStore) publish(ctx context.Context) {
	if s.feed.Subscribers() == 0 {
		return
	}
	list, err := s.List(context.WithoutCancel(ctx))
	if err != nil {
		return
	}
	s.feed.Publish(list)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
