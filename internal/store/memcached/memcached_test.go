package memcached

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/store/memory"
)

type fakeClient struct {
	mu      sync.Mutex
	items   map[string]*memcache.Item
	gets    int
	failSet bool
	failGet bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]*memcache.Item)}
}

func (f *fakeClient) Get(key string) (*memcache.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet {
		return nil, errors.New("connection reset")
	}
	it, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return it, nil
}

func (f *fakeClient) Set(item *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("server error")
	}
	f.items[item.Key] = item
	return nil
}

func (f *fakeClient) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.items, key)
	return nil
}

func (f *fakeClient) Ping() error  { return nil }
func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) has(city string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[key(city)]
	return ok
}

// TestKey verifies keys are normalized and contain no spaces.
func TestKey(t *testing.T) {
	if got, want := key(" New York "), "weather:new+york"; got != want {
		t.Errorf("key() = %q, want %q", got, want)
	}
}

// TestWeatherStore_WriteThrough verifies Upsert writes both tiers and Get is
// then served from memcached.
func TestWeatherStore_WriteThrough(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewWeatherStore()
	fc := newFakeClient()
	s := newWithClient(backing, fc, time.Hour)

	if err := s.Upsert(ctx, models.WeatherRecord{CityName: "Seattle", LastUpdated: 5, Stale: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !fc.has("seattle") {
		t.Fatal("memcached not written on Upsert")
	}
	// Remove from backing; a memcached hit must still serve it.
	_ = backing.DeleteAll(ctx)

	got, ok, err := s.Get(ctx, "Seattle")
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if got.LastUpdated != 5 || got.Stale {
		t.Errorf("Get() = %+v", got)
	}
}

// TestWeatherStore_ReadThrough verifies a memcached miss falls back to the
// backing store and fills memcached.
func TestWeatherStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewWeatherStore()
	_ = backing.Upsert(ctx, models.WeatherRecord{CityName: "Boston", LastUpdated: 7})
	fc := newFakeClient()
	s := newWithClient(backing, fc, time.Hour)

	got, ok, err := s.Get(ctx, "boston")
	if err != nil || !ok || got.LastUpdated != 7 {
		t.Fatalf("Get() = %+v, %v, %v", got, ok, err)
	}
	if !fc.has("boston") {
		t.Error("memcached not filled on backing hit")
	}

	if _, ok, _ := s.Get(ctx, "unknown"); ok {
		t.Error("Get() ok = true for unknown city")
	}
}

// TestWeatherStore_MemcachedDown verifies reads and writes survive memcached failures.
func TestWeatherStore_MemcachedDown(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewWeatherStore()
	fc := newFakeClient()
	fc.failGet, fc.failSet = true, true
	s := newWithClient(backing, fc, time.Hour)

	if err := s.Upsert(ctx, models.WeatherRecord{CityName: "Denver", LastUpdated: 1}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "Denver")
	if err != nil || !ok || got.CityName != "Denver" {
		t.Errorf("Get() = %+v, %v, %v", got, ok, err)
	}
}

// TestWeatherStore_Deletes verifies deletes reach memcached so stale copies
// are not served afterwards.
func TestWeatherStore_Deletes(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewWeatherStore()
	fc := newFakeClient()
	s := newWithClient(backing, fc, time.Hour)

	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "A", LastUpdated: 10})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "B", LastUpdated: 100})
	_ = s.Upsert(ctx, models.WeatherRecord{CityName: "C", LastUpdated: 100})

	n, err := s.DeleteOlderThan(ctx, 50)
	if err != nil || n != 1 {
		t.Fatalf("DeleteOlderThan() = %d, %v, want 1", n, err)
	}
	if fc.has("A") || !fc.has("B") {
		t.Error("DeleteOlderThan did not evict exactly the old key")
	}

	if err := s.Delete(ctx, "B"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "B"); ok {
		t.Error("B served after Delete")
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if fc.has("C") {
		t.Error("C still in memcached after DeleteAll")
	}
}
