package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// InFlight counts requests currently being served so shutdown can drain them.
// Install it with RouterConfig.InFlight.
type InFlight struct {
	n atomic.Int64
}

// Middleware counts every request passing through next.
func (f *InFlight) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.n.Add(1)
		defer f.n.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// Count returns the number of requests in progress.
func (f *InFlight) Count() int64 {
	return f.n.Load()
}

// Drain polls every interval until no request is in progress or ctx ends.
func (f *InFlight) Drain(ctx context.Context, interval time.Duration) error {
	if f.Count() == 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if f.Count() == 0 {
				return nil
			}
		}
	}
}
