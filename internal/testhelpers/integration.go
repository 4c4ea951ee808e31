//go:build integration
// +build integration

// Package testhelpers builds live-backed repositories for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/client"
	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/repository"
	"github.com/kjstillabower/weather-cache/internal/store"
	"github.com/kjstillabower/weather-cache/internal/store/memcached"
	"github.com/kjstillabower/weather-cache/internal/store/memory"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CacheBackend  string // "memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5/weather"
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationClient creates a live OpenWeather client.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.OpenWeatherClient {
	c, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, models.UnitsMetric, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

// SetupIntegrationRepository wires a repository over the live client. With
// INTEGRATION_CACHE_BACKEND=memcached the weather store is layered over
// memcached when it answers a ping.
func SetupIntegrationRepository(t *testing.T, cfg IntegrationTestConfig, logger *zap.Logger) *repository.Repository {
	var weather store.WeatherStore = memory.NewWeatherStore()
	if cfg.CacheBackend == "memcached" {
		mc := memcached.New(weather, cfg.MemcachedAddr, 500*time.Millisecond, 2, time.Hour)
		if err := mc.Ping(); err == nil {
			weather = mc
			t.Cleanup(func() { _ = mc.Close() })
			t.Logf("Using memcached at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("memcached not available (%v), using in-memory store", err)
		}
	}
	favorites := memory.NewFavoriteStore()
	t.Cleanup(func() { _ = favorites.Close() })
	return repository.New(SetupIntegrationClient(t, cfg), weather, favorites, logger)
}
