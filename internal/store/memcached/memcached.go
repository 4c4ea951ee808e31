// Package memcached layers a shared memcached tier over another
// store.WeatherStore. Reads go to memcached first and fill it on a backing hit;
// writes go to the backing store and then to memcached.
package memcached

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
	"github.com/kjstillabower/weather-cache/internal/store"
)

const (
	keyPrefix      = "weather:"
	maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as absolute unix time
)

// client is the subset of *memcache.Client used here.
type client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
	Ping() error
	Close() error
}

// WeatherStore is a read-through, write-through memcached layer. memcached
// failures are counted and otherwise ignored; the backing store stays the
// source of truth.
type WeatherStore struct {
	client client
	next   store.WeatherStore
	ttl    time.Duration
}

var _ store.WeatherStore = (*WeatherStore)(nil)

// New creates a WeatherStore over next. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns use package defaults if zero. ttl bounds how long an entry
// lives in memcached; it falls back to one hour when out of range.
func New(next store.WeatherStore, addrs string, timeout time.Duration, maxIdleConns int, ttl time.Duration) *WeatherStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	c := memcache.New(servers...)
	if timeout > 0 {
		c.Timeout = timeout
	}
	if maxIdleConns > 0 {
		c.MaxIdleConns = maxIdleConns
	}
	return newWithClient(next, c, ttl)
}

func newWithClient(next store.WeatherStore, c client, ttl time.Duration) *WeatherStore {
	return &WeatherStore{client: c, next: next, ttl: ttl}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key escapes the normalized city so names with spaces stay valid memcached keys.
func key(city string) string {
	return keyPrefix + url.QueryEscape(store.Key(city))
}

func (s *WeatherStore) Get(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, false, err
	}
	item, err := s.client.Get(key(city))
	switch {
	case err == nil:
		var rec models.WeatherRecord
		if jsonErr := json.Unmarshal(item.Value, &rec); jsonErr == nil {
			return rec, true, nil
		}
		observability.StoreErrorsTotal.WithLabelValues("memcached_decode").Inc()
	case !errors.Is(err, memcache.ErrCacheMiss):
		observability.StoreErrorsTotal.WithLabelValues("memcached_get").Inc()
	}

	rec, ok, err := s.next.Get(ctx, city)
	if err != nil || !ok {
		return rec, ok, err
	}
	s.set(rec)
	return rec, true, nil
}

func (s *WeatherStore) List(ctx context.Context) ([]models.WeatherRecord, error) {
	return s.next.List(ctx)
}

func (s *WeatherStore) Upsert(ctx context.Context, rec models.WeatherRecord) error {
	rec.Stale = false
	if err := s.next.Upsert(ctx, rec); err != nil {
		return err
	}
	s.set(rec)
	return nil
}

func (s *WeatherStore) Delete(ctx context.Context, city string) error {
	if err := s.next.Delete(ctx, city); err != nil {
		return err
	}
	s.delete(city)
	return nil
}

// DeleteAll clears only this store's keys; memcached may be shared.
func (s *WeatherStore) DeleteAll(ctx context.Context) error {
	all, err := s.next.List(ctx)
	if err != nil {
		return err
	}
	if err := s.next.DeleteAll(ctx); err != nil {
		return err
	}
	for _, rec := range all {
		s.delete(rec.CityName)
	}
	return nil
}

func (s *WeatherStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	all, err := s.next.List(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.next.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, rec := range all {
		if rec.LastUpdated < cutoff {
			s.delete(rec.CityName)
		}
	}
	return n, nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *WeatherStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *WeatherStore) Close() error {
	return s.client.Close()
}

func (s *WeatherStore) set(rec models.WeatherRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		observability.StoreErrorsTotal.WithLabelValues("memcached_encode").Inc()
		return
	}
	expSec := int32(s.ttl.Seconds())
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	if err := s.client.Set(&memcache.Item{Key: key(rec.CityName), Value: raw, Expiration: expSec}); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("memcached_set").Inc()
		// Drop whatever is there so readers fall through to the backing store.
		s.delete(rec.CityName)
	}
}

func (s *WeatherStore) delete(city string) {
	if err := s.client.Delete(key(city)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		observability.StoreErrorsTotal.WithLabelValues("memcached_delete").Inc()
	}
}
