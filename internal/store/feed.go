package store

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-cache/internal/models"
)

// Feed fans favorites snapshots out to subscribers. Each subscriber channel
// holds one pending snapshot; a newer snapshot replaces an unread one.
// Publish and Subscribe must be called by a single owner that serializes them
// with its own mutations so subscribers never observe an older list after a newer one.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan []models.FavoriteCity
	nextID int
	closed bool
	// OnSubscribersChanged, when set, is called with the new subscriber count.
	OnSubscribersChanged func(n int)
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan []models.FavoriteCity)}
}

// Subscribe registers a subscriber primed with initial. The channel is closed
// when ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, initial []models.FavoriteCity) <-chan []models.FavoriteCity {
	ch := make(chan []models.FavoriteCity, 1)
	ch <- copyFavorites(initial)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	n := len(f.subs)
	f.mu.Unlock()
	f.notifyCount(n)

	go func() {
		<-ctx.Done()
		f.unsubscribe(id)
	}()
	return ch
}

// Publish delivers list to every subscriber, replacing any unread snapshot.
func (f *Feed) Publish(list []models.FavoriteCity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		// Feed is the only sender, so after the drain there is room.
		select {
		case <-ch:
		default:
		}
		ch <- copyFavorites(list)
	}
}

// Close closes every subscriber channel. Later subscribers get a closed channel.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	f.mu.Unlock()
	f.notifyCount(0)
}

// Subscribers returns the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) unsubscribe(id int) {
	f.mu.Lock()
	ch, ok := f.subs[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	delete(f.subs, id)
	close(ch)
	n := len(f.subs)
	f.mu.Unlock()
	f.notifyCount(n)
}

func (f *Feed) notifyCount(n int) {
	if f.OnSubscribersChanged != nil {
		f.OnSubscribersChanged(n)
	}
}

func copyFavorites(list []models.FavoriteCity) []models.FavoriteCity {
	out := make([]models.FavoriteCity, len(list))
	copy(out, list)
	return out
}
