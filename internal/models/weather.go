package models

import "time"

// WeatherRecord is one weather snapshot for a city. CityName is the cache key;
// optional fields are nil when the upstream payload omitted them.
type WeatherRecord struct {
	CityName    string   `json:"cityName"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Country     *string  `json:"country,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	FeelsLike   *float64 `json:"feelsLike,omitempty"`
	TempMin     *float64 `json:"tempMin,omitempty"`
	TempMax     *float64 `json:"tempMax,omitempty"`
	Pressure    *int     `json:"pressure,omitempty"`
	Humidity    *int     `json:"humidity,omitempty"`
	Description *string  `json:"description,omitempty"`
	Icon        *string  `json:"icon,omitempty"`
	WindSpeed   *float64 `json:"windSpeed,omitempty"`
	Sunrise     *int64   `json:"sunrise,omitempty"`
	Sunset      *int64   `json:"sunset,omitempty"`
	LastUpdated int64    `json:"lastUpdated"`     // epoch milliseconds
	Stale       bool     `json:"stale,omitempty"` // served from cache after a failed refresh; never persisted
}

// UpdatedAt returns LastUpdated as a time.Time.
func (r WeatherRecord) UpdatedAt() time.Time {
	return time.UnixMilli(r.LastUpdated)
}

// FavoriteCity is a user bookmark. Coordinates are a snapshot taken when the
// city was favorited and are not refreshed afterwards.
type FavoriteCity struct {
	ID          int64   `json:"id"`
	CityName    string  `json:"cityName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Country     *string `json:"country,omitempty"`
	LastUpdated int64   `json:"lastUpdated"` // epoch milliseconds
}

// Units is the measurement system requested from the weather API.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

// Valid reports whether u is a unit system the upstream API accepts.
func (u Units) Valid() bool {
	switch u {
	case UnitsMetric, UnitsImperial, UnitsStandard:
		return true
	}
	return false
}
