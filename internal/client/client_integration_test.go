//go:build integration
// +build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache/internal/models"
)

const liveAPIURL = "https://api.openweathermap.org/data/2.5/weather"

func liveClient(t *testing.T) *OpenWeatherClient {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	c, err := NewOpenWeatherClient(apiKey, liveAPIURL, models.UnitsMetric, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

func TestOpenWeatherClient_GetByCity_Integration(t *testing.T) {
	c := liveClient(t)

	got, err := c.GetByCity(context.Background(), "London")
	if err != nil {
		t.Fatalf("GetByCity() error = %v", err)
	}
	if got.CityName == "" {
		t.Error("CityName is empty")
	}
	if got.Temperature == nil {
		t.Error("Temperature missing from live payload")
	}
}

func TestOpenWeatherClient_GetByCoordinates_Integration(t *testing.T) {
	c := liveClient(t)

	got, err := c.GetByCoordinates(context.Background(), 47.6062, -122.3321)
	if err != nil {
		t.Fatalf("GetByCoordinates() error = %v", err)
	}
	if got.CityName == "" {
		t.Error("CityName is empty; expected the API to resolve a name")
	}
}

func TestOpenWeatherClient_UnknownCity_Integration(t *testing.T) {
	c := liveClient(t)

	_, err := c.GetByCity(context.Background(), "zzzz-not-a-real-city-zzzz")
	if got := Classify(err); got != ErrorCategoryNotFound {
		t.Errorf("Classify() = %q, want not_found (err: %v)", got, err)
	}
}
