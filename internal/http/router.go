package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache/internal/observability"
)

// RouterConfig holds the middleware settings for NewRouter.
type RouterConfig struct {
	RequestTimeout time.Duration
	// Limiter is applied to the weather, cache and favorites routes. Nil disables it.
	Limiter  *rate.Limiter
	InFlight *InFlight
}

// NewRouter wires the handlers onto a mux.Router. The favorites stream is
// registered outside the timeout middleware since it stays open.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	if cfg.InFlight != nil {
		router.Use(cfg.InFlight.Middleware)
	}

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	limited := router.NewRoute().Subrouter()
	limited.Use(RateLimitMiddleware(cfg.Limiter))
	limited.HandleFunc("/favorites/stream", h.StreamFavorites).Methods(http.MethodGet)

	api := limited.NewRoute().Subrouter()
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/weather", h.GetWeatherByCoordinates).Methods(http.MethodGet)
	api.HandleFunc("/weather/{city}", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.ListCache).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.PurgeAll).Methods(http.MethodDelete)
	api.HandleFunc("/cache/{city}", h.PurgeCity).Methods(http.MethodDelete)
	api.HandleFunc("/favorites", h.ListFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites/{city}", h.GetFavorite).Methods(http.MethodGet)
	api.HandleFunc("/favorites/{city}", h.PutFavorite).Methods(http.MethodPut)
	api.HandleFunc("/favorites/{city}", h.DeleteFavorite).Methods(http.MethodDelete)
	return router
}
