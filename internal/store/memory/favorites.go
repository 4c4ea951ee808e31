package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/store"
)

// FavoriteStore keeps favorites in a map keyed by store.Key and publishes the
// sorted list to watchers after every mutation.
type FavoriteStore struct {
	mu     sync.Mutex
	data   map[string]models.FavoriteCity
	nextID int64
	feed   *store.Feed
}

var _ store.FavoriteStore = (*FavoriteStore)(nil)

// NewFavoriteStore returns an empty FavoriteStore.
func NewFavoriteStore() *FavoriteStore {
	return &FavoriteStore{
		data: make(map[string]models.FavoriteCity),
		feed: store.NewFeed(),
	}
}

// Feed exposes the change feed, mainly so callers can observe subscriber counts.
func (s *FavoriteStore) Feed() *store.Feed {
	return s.feed
}

// Close ends every Watch subscription.
func (s *FavoriteStore) Close() error {
	s.feed.Close()
	return nil
}

func (s *FavoriteStore) List(ctx context.Context) ([]models.FavoriteCity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

func (s *FavoriteStore) Watch(ctx context.Context) (<-chan []models.FavoriteCity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.Subscribe(ctx, s.sortedLocked()), nil
}

func (s *FavoriteStore) GetByCity(ctx context.Context, city string) (models.FavoriteCity, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.FavoriteCity{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fav, ok := s.data[store.Key(city)]
	return fav, ok, nil
}

func (s *FavoriteStore) GetByID(ctx context.Context, id int64) (models.FavoriteCity, error) {
	if err := ctx.Err(); err != nil {
		return models.FavoriteCity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, fav, ok := s.findByIDLocked(id); ok {
		return fav, nil
	}
	return models.FavoriteCity{}, store.ErrNotFound
}

// Upsert keeps the existing id when the city is already a favorite.
func (s *FavoriteStore) Upsert(ctx context.Context, fav models.FavoriteCity) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := store.Key(fav.CityName)
	if existing, ok := s.data[key]; ok {
		fav.ID = existing.ID
	} else {
		s.nextID++
		fav.ID = s.nextID
	}
	s.data[key] = fav
	s.feed.Publish(s.sortedLocked())
	return fav.ID, nil
}

func (s *FavoriteStore) Update(ctx context.Context, fav models.FavoriteCity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey, _, ok := s.findByIDLocked(fav.ID)
	if !ok {
		return store.ErrNotFound
	}
	newKey := store.Key(fav.CityName)
	if other, taken := s.data[newKey]; taken && other.ID != fav.ID {
		return store.ErrConflict
	}
	delete(s.data, oldKey)
	s.data[newKey] = fav
	s.feed.Publish(s.sortedLocked())
	return nil
}

func (s *FavoriteStore) Delete(ctx context.Context, fav models.FavoriteCity) error {
	if fav.ID == 0 {
		return s.DeleteByCity(ctx, fav.CityName)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, _, ok := s.findByIDLocked(fav.ID); ok {
		delete(s.data, key)
		s.feed.Publish(s.sortedLocked())
	}
	return nil
}

func (s *FavoriteStore) DeleteByCity(ctx context.Context, city string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := store.Key(city)
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.feed.Publish(s.sortedLocked())
	}
	return nil
}

func (s *FavoriteStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]models.FavoriteCity)
	s.feed.Publish(nil)
	return nil
}

func (s *FavoriteStore) findByIDLocked(id int64) (string, models.FavoriteCity, bool) {
	for k, fav := range s.data {
		if fav.ID == id {
			return k, fav, true
		}
	}
	return "", models.FavoriteCity{}, false
}

func (s *FavoriteStore) sortedLocked() []models.FavoriteCity {
	out := make([]models.FavoriteCity, 0, len(s.data))
	for _, fav := range s.data {
		out = append(out, fav)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CityName < out[j].CityName })
	return out
}
