package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/store"
)

const weatherColumns = `city_name, latitude, longitude, country, temperature, feels_like,
	temp_min, temp_max, pressure, humidity, description, icon, wind_speed,
	sunrise, sunset, last_updated`

// WeatherStore is the SQL-backed store.WeatherStore.
type WeatherStore struct {
	db *DB
}

var _ store.WeatherStore = (*WeatherStore)(nil)

// Weather returns the weather store backed by d.
func (d *DB) Weather() *WeatherStore {
	return &WeatherStore{db: d}
}

type scanner interface {
	Scan(dest ...any) error
}

// Nullable columns scan straight into the record's pointer fields.
func scanWeather(row scanner) (models.WeatherRecord, error) {
	var rec models.WeatherRecord
	err := row.Scan(
		&rec.CityName, &rec.Latitude, &rec.Longitude, &rec.Country,
		&rec.Temperature, &rec.FeelsLike, &rec.TempMin, &rec.TempMax,
		&rec.Pressure, &rec.Humidity, &rec.Description, &rec.Icon, &rec.WindSpeed,
		&rec.Sunrise, &rec.Sunset, &rec.LastUpdated,
	)
	return rec, err
}

func (s *WeatherStore) Get(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	row := s.db.queryRow(ctx, `SELECT `+weatherColumns+` FROM weather_records WHERE city_key = ?`, store.Key(city))
	rec, err := scanWeather(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WeatherRecord{}, false, nil
	}
	if err != nil {
		return models.WeatherRecord{}, false, fmt.Errorf("get weather %q: %w", city, err)
	}
	return rec, true, nil
}

func (s *WeatherStore) List(ctx context.Context) ([]models.WeatherRecord, error) {
	rows, err := s.db.query(ctx, `SELECT `+weatherColumns+` FROM weather_records ORDER BY last_updated DESC, city_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list weather: %w", err)
	}
	defer rows.Close()

	var out []models.WeatherRecord
	for rows.Next() {
		rec, err := scanWeather(rows)
		if err != nil {
			return nil, fmt.Errorf("list weather: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *WeatherStore) Upsert(ctx context.Context, rec models.WeatherRecord) error {
	_, err := s.db.exec(ctx, `INSERT INTO weather_records (city_key, `+weatherColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (city_key) DO UPDATE SET
			city_name = excluded.city_name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			country = excluded.country,
			temperature = excluded.temperature,
			feels_like = excluded.feels_like,
			temp_min = excluded.temp_min,
			temp_max = excluded.temp_max,
			pressure = excluded.pressure,
			humidity = excluded.humidity,
			description = excluded.description,
			icon = excluded.icon,
			wind_speed = excluded.wind_speed,
			sunrise = excluded.sunrise,
			sunset = excluded.sunset,
			last_updated = excluded.last_updated`,
		store.Key(rec.CityName), rec.CityName, rec.Latitude, rec.Longitude, rec.Country,
		rec.Temperature, rec.FeelsLike, rec.TempMin, rec.TempMax,
		rec.Pressure, rec.Humidity, rec.Description, rec.Icon, rec.WindSpeed,
		rec.Sunrise, rec.Sunset, rec.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert weather %q: %w", rec.CityName, err)
	}
	return nil
}

func (s *WeatherStore) Delete(ctx context.Context, city string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM weather_records WHERE city_key = ?`, store.Key(city)); err != nil {
		return fmt.Errorf("delete weather %q: %w", city, err)
	}
	return nil
}

func (s *WeatherStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.exec(ctx, `DELETE FROM weather_records`); err != nil {
		return fmt.Errorf("delete all weather: %w", err)
	}
	return nil
}

func (s *WeatherStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.exec(ctx, `DELETE FROM weather_records WHERE last_updated < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete weather older than %d: %w", cutoff, err)
	}
	return res.RowsAffected()
}
