package memory

import (
	"context"
	"testing"

	"github.com/kjstillabower/weather-cache/internal/models"
)

// TestWeatherStore_UpsertGet verifies that Upsert stores the record and Get
// finds it regardless of case and surrounding whitespace.
func TestWeatherStore_UpsertGet(t *testing.T) {
	ctx := context.Background()
	s := NewWeatherStore()

	temp := 12.5
	rec := models.WeatherRecord{CityName: "Seattle", Temperature: &temp, LastUpdated: 1000}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "  seattle ")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.CityName != "Seattle" || got.Temperature == nil || *got.Temperature != temp {
		t.Errorf("Get() = %+v, want %+v", got, rec)
	}
}

// TestWeatherStore_Get_Miss verifies that Get returns ok=false for an unknown city.
func TestWeatherStore_Get_Miss(t *testing.T) {
	s := NewWeatherStore()
	_, ok, err := s.Get(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestWeatherStore_Upsert_Replaces verifies one record per city and that the
// stale flag is never persisted.
func TestWeatherStore_Upsert_Replaces(t *testing.T) {
	ctx := context.Background()
	s := NewWeatherStore()

	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "Paris", LastUpdated: 1})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "paris", LastUpdated: 2, Stale: true})

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List() len = %d, want 1", len(all))
	}
	if all[0].LastUpdated != 2 {
		t.Errorf("LastUpdated = %d, want 2", all[0].LastUpdated)
	}
	if all[0].Stale {
		t.Error("Stale = true, want false after Upsert")
	}
}

// TestWeatherStore_List_Order verifies newest-first ordering.
func TestWeatherStore_List_Order(t *testing.T) {
	ctx := context.Background()
	s := NewWeatherStore()
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "A", LastUpdated: 10})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "B", LastUpdated: 30})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "C", LastUpdated: 20})

	all, _ := s.List(ctx)
	want := []string{"B", "C", "A"}
	for i, w := range want {
		if all[i].CityName != w {
			t.Errorf("List()[%d] = %q, want %q", i, all[i].CityName, w)
		}
	}
}

// TestWeatherStore_Deletes covers Delete, DeleteOlderThan and DeleteAll.
func TestWeatherStore_Deletes(t *testing.T) {
	ctx := context.Background()
	s := NewWeatherStore()
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "Old1", LastUpdated: 10})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "Old2", LastUpdated: 20})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "New", LastUpdated: 100})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "Gone", LastUpdated: 100})

	if err := s.Delete(ctx, "GONE"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "Gone"); ok {
		t.Error("Get() after Delete ok = true, want false")
	}

	n, err := s.DeleteOlderThan(ctx, 50)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteOlderThan() = %d, want 2", n)
	}
	if _, ok, _ := s.Get(ctx, "New"); !ok {
		t.Error("record newer than cutoff was removed")
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if all, _ := s.List(ctx); len(all) != 0 {
		t.Errorf("List() after DeleteAll len = %d, want 0", len(all))
	}
}

// TestWeatherStore_CanceledContext verifies operations honor ctx.
func TestWeatherStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewWeatherStore()
	if _, _, err := s.Get(ctx, "x"); err == nil {
		t.Error("Get() with canceled ctx: expected error")
	}
	if err := s.Upsert(ctx, models.WeatherRecord{CityName: "x"}); err == nil {
		t.Error("Upsert() with canceled ctx: expected error")
	}
}
