//go:build integration

package memcached

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/store/memory"
)

// TestWeatherStore_Integration verifies a round trip against a local memcached.
func TestWeatherStore_Integration(t *testing.T) {
	s := New(memory.NewWeatherStore(), "localhost:11211", 500*time.Millisecond, 2, time.Minute)
	defer s.Close()
	if err := s.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	ctx := context.Background()
	if err := s.Upsert(ctx, models.WeatherRecord{CityName: "San Francisco", LastUpdated: 42}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "san francisco")
	if err != nil || !ok || got.LastUpdated != 42 {
		t.Fatalf("Get() = %+v, %v, %v", got, ok, err)
	}
	if err := s.Delete(ctx, "San Francisco"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
