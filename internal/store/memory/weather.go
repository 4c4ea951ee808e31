// Package memory implements the store interfaces with in-process maps. It is
// the default backend and the one used by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/store"
)

// WeatherStore keeps weather snapshots in a map keyed by store.Key.
// Safe for concurrent use.
type WeatherStore struct {
	mu   sync.RWMutex
	data map[string]models.WeatherRecord
}

var _ store.WeatherStore = (*WeatherStore)(nil)

// NewWeatherStore returns an empty WeatherStore.
func NewWeatherStore() *WeatherStore {
	return &WeatherStore{data: make(map[string]models.WeatherRecord)}
}

// Get returns (record, true, nil) on hit and (zero, false, nil) on miss.
func (s *WeatherStore) Get(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[store.Key(city)]
	return rec, ok, nil
}

func (s *WeatherStore) List(ctx context.Context) ([]models.WeatherRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.WeatherRecord, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated != out[j].LastUpdated {
			return out[i].LastUpdated > out[j].LastUpdated
		}
		return out[i].CityName < out[j].CityName
	})
	return out, nil
}

// Upsert replaces the record for rec.CityName. The Stale flag is never stored.
func (s *WeatherStore) Upsert(ctx context.Context, rec models.WeatherRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Stale = false
	s.mu.Lock()
	s.data[store.Key(rec.CityName)] = rec
	s.mu.Unlock()
	return nil
}

func (s *WeatherStore) Delete(ctx context.Context, city string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, store.Key(city))
	s.mu.Unlock()
	return nil
}

func (s *WeatherStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = make(map[string]models.WeatherRecord)
	s.mu.Unlock()
	return nil
}

func (s *WeatherStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.data {
		if rec.LastUpdated < cutoff {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}
