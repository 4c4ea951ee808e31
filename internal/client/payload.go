package client

import (
	"time"

	"github.com/kjstillabower/weather-cache/internal/models"
)

// openWeatherResponse mirrors the /data/2.5/weather payload. Every field is
// optional upstream, hence the pointers.
type openWeatherResponse struct {
	Coord *struct {
		Lon *float64 `json:"lon"`
		Lat *float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		ID          *int    `json:"id"`
		Main        *string `json:"main"`
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
	} `json:"weather"`
	Base *string `json:"base"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Pressure  *int     `json:"pressure"`
		Humidity  *int     `json:"humidity"`
		SeaLevel  *int     `json:"sea_level"`
		GrndLevel *int     `json:"grnd_level"`
	} `json:"main"`
	Visibility *int `json:"visibility"`
	Wind       *struct {
		Speed *float64 `json:"speed"`
		Deg   *int     `json:"deg"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	Clouds *struct {
		All *int `json:"all"`
	} `json:"clouds"`
	Dt  *int64 `json:"dt"`
	Sys *struct {
		Type    *int    `json:"type"`
		ID      *int    `json:"id"`
		Country *string `json:"country"`
		Sunrise *int64  `json:"sunrise"`
		Sunset  *int64  `json:"sunset"`
	} `json:"sys"`
	Timezone *int    `json:"timezone"`
	ID       *int    `json:"id"`
	Name     *string `json:"name"`
	Cod      *int    `json:"cod"`
}

// mapResponse converts the payload into a WeatherRecord stamped at fetchedAt.
// fallbackName is used only when the payload carries no name.
func mapResponse(apiResp openWeatherResponse, fallbackName string, fetchedAt time.Time) models.WeatherRecord {
	rec := models.WeatherRecord{
		CityName:    fallbackName,
		LastUpdated: fetchedAt.UnixMilli(),
	}
	if apiResp.Name != nil && *apiResp.Name != "" {
		rec.CityName = *apiResp.Name
	}
	if apiResp.Coord != nil {
		if apiResp.Coord.Lat != nil {
			rec.Latitude = *apiResp.Coord.Lat
		}
		if apiResp.Coord.Lon != nil {
			rec.Longitude = *apiResp.Coord.Lon
		}
	}
	if m := apiResp.Main; m != nil {
		rec.Temperature = m.Temp
		rec.FeelsLike = m.FeelsLike
		rec.TempMin = m.TempMin
		rec.TempMax = m.TempMax
		rec.Pressure = m.Pressure
		rec.Humidity = m.Humidity
	}
	if len(apiResp.Weather) > 0 {
		rec.Description = apiResp.Weather[0].Description
		rec.Icon = apiResp.Weather[0].Icon
	}
	if apiResp.Wind != nil {
		rec.WindSpeed = apiResp.Wind.Speed
	}
	if s := apiResp.Sys; s != nil {
		rec.Country = s.Country
		rec.Sunrise = s.Sunrise
		rec.Sunset = s.Sunset
	}
	return rec
}
