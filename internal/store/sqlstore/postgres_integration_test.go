//go:build integration

package sqlstore

import (
	"context"
	"os"
	"testing"

	"github.com/kjstillabower/weather-cache/internal/models"
)

// Run with: DATABASE_URL=postgres://... go test -tags=integration ./internal/store/sqlstore/...
func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, Postgres, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ws := db.Weather()
	fs := db.Favorites()
	t.Cleanup(func() {
		_ = ws.DeleteAll(ctx)
		_ = fs.DeleteAll(ctx)
	})

	if err := ws.Upsert(ctx, models.WeatherRecord{CityName: "Integration City", Humidity: ptr(40), LastUpdated: 10}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, ok, err := ws.Get(ctx, "integration city")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Humidity == nil || *got.Humidity != 40 {
		t.Errorf("Humidity = %v, want 40", got.Humidity)
	}
	if n, err := ws.DeleteOlderThan(ctx, 11); err != nil || n != 1 {
		t.Errorf("DeleteOlderThan() = %d, %v, want 1", n, err)
	}

	id1, err := fs.Upsert(ctx, models.FavoriteCity{CityName: "Integration City"})
	if err != nil {
		t.Fatalf("favorite Upsert: %v", err)
	}
	id2, _ := fs.Upsert(ctx, models.FavoriteCity{CityName: "integration city", Latitude: 1})
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}
}
