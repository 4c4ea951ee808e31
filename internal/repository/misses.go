package repository

import "sync"

// missTracker counts in-progress remote fetches per city. A count above one
// means concurrent callers raced past the cache; nothing blocks them.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// start records a fetch for key and returns the number now in progress.
// Callers must call done(key) when the fetch completes.
func (m *missTracker) start(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[key]++
	return m.active[key]
}

func (m *missTracker) done(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.active[key]; ok && n > 0 {
		m.active[key]--
		if m.active[key] == 0 {
			delete(m.active, key)
		}
	}
}
