package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache/internal/models"
)

// TestFavorites_RoundTrip verifies add then remove toggles IsFavorite.
func TestFavorites_RoundTrip(t *testing.T) {
	r, _, _ := newTestRepo(&countingRemote{})
	ctx := context.Background()
	rec := models.WeatherRecord{CityName: "Vienna", Latitude: 48.2, Longitude: 16.37, Country: ptr("AT")}

	id, err := r.AddFavorite(ctx, rec)
	if err != nil {
		t.Fatalf("AddFavorite() error = %v", err)
	}
	if id == 0 {
		t.Error("AddFavorite() id = 0")
	}
	if !r.IsFavorite(ctx, "Vienna") {
		t.Error("IsFavorite() = false after AddFavorite")
	}

	if err := r.RemoveFavorite(ctx, "Vienna"); err != nil {
		t.Fatalf("RemoveFavorite() error = %v", err)
	}
	if r.IsFavorite(ctx, "Vienna") {
		t.Error("IsFavorite() = true after RemoveFavorite")
	}
	if err := r.RemoveFavorite(ctx, "Vienna"); err != nil {
		t.Errorf("RemoveFavorite() of absent city error = %v, want nil", err)
	}
}

// TestAddFavorite_SnapshotsRecord verifies the favorite copies the record's
// coordinates and country and is stamped with the repository clock.
func TestAddFavorite_SnapshotsRecord(t *testing.T) {
	r, _, fs := newTestRepo(&countingRemote{})
	ctx := context.Background()

	id, _ := r.AddFavorite(ctx, models.WeatherRecord{CityName: "Quito", Latitude: -0.22, Longitude: -78.5, Country: ptr("EC"), LastUpdated: 5})
	fav, err := fs.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if fav.Latitude != -0.22 || fav.Longitude != -78.5 || fav.Country == nil || *fav.Country != "EC" {
		t.Errorf("favorite = %+v", fav)
	}
	if fav.LastUpdated != fixedNow.UnixMilli() {
		t.Errorf("LastUpdated = %d, want %d", fav.LastUpdated, fixedNow.UnixMilli())
	}

	// Re-adding overwrites in place.
	id2, _ := r.AddFavorite(ctx, models.WeatherRecord{CityName: "quito", Latitude: 1})
	if id2 != id {
		t.Errorf("re-add id = %d, want %d", id2, id)
	}
}

// TestAddFavorite_NoName verifies a nameless record is rejected.
func TestAddFavorite_NoName(t *testing.T) {
	r, _, _ := newTestRepo(&countingRemote{})
	if _, err := r.AddFavorite(context.Background(), models.WeatherRecord{}); err == nil {
		t.Error("AddFavorite() with empty city: expected error")
	}
}

// TestFavorites_StoreFailuresAreReported verifies add and remove failures are
// returned instead of swallowed.
func TestFavorites_StoreFailuresAreReported(t *testing.T) {
	_, ws, fs := newTestRepo(&countingRemote{})
	boom := errors.New("disk full")
	r := New(&countingRemote{}, ws, failingFavorites{FavoriteStore: fs, err: boom}, nil)
	ctx := context.Background()

	if _, err := r.AddFavorite(ctx, models.WeatherRecord{CityName: "Accra"}); !errors.Is(err, boom) {
		t.Errorf("AddFavorite() error = %v, want %v", err, boom)
	}
	if err := r.RemoveFavorite(ctx, "Accra"); !errors.Is(err, boom) {
		t.Errorf("RemoveFavorite() error = %v, want %v", err, boom)
	}
}

// TestRemoveFavoriteCity verifies removal by full record.
func TestRemoveFavoriteCity(t *testing.T) {
	r, _, _ := newTestRepo(&countingRemote{})
	ctx := context.Background()
	id, _ := r.AddFavorite(ctx, models.WeatherRecord{CityName: "Doha"})

	if err := r.RemoveFavoriteCity(ctx, models.FavoriteCity{ID: id, CityName: "Doha"}); err != nil {
		t.Fatalf("RemoveFavoriteCity() error = %v", err)
	}
	if r.IsFavorite(ctx, "Doha") {
		t.Error("IsFavorite() = true after RemoveFavoriteCity")
	}
}

// TestFavorites_LiveView verifies the channel tracks mutations in city order.
func TestFavorites_LiveView(t *testing.T) {
	r, _, _ := newTestRepo(&countingRemote{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Favorites(ctx)
	if err != nil {
		t.Fatalf("Favorites() error = %v", err)
	}
	next := func() []models.FavoriteCity {
		t.Helper()
		select {
		case list := <-ch:
			return list
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for favorites")
		}
		return nil
	}

	if got := next(); len(got) != 0 {
		t.Errorf("initial = %+v, want empty", got)
	}
	_, _ = r.AddFavorite(ctx, models.WeatherRecord{CityName: "Zurich"})
	next()
	_, _ = r.AddFavorite(ctx, models.WeatherRecord{CityName: "Amsterdam"})
	got := next()
	if len(got) != 2 || got[0].CityName != "Amsterdam" || got[1].CityName != "Zurich" {
		t.Errorf("list = %+v, want [Amsterdam Zurich]", got)
	}

	snapshot, err := r.ListFavorites(ctx)
	if err != nil || len(snapshot) != 2 {
		t.Errorf("ListFavorites() = %+v, %v", snapshot, err)
	}

	_ = r.RemoveFavorite(ctx, "Zurich")
	if got := next(); len(got) != 1 {
		t.Errorf("after remove = %+v", got)
	}
}
