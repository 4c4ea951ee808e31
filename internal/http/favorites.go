package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
	"github.com/kjstillabower/weather-cache/internal/validation"
)

// ListFavorites handles GET /favorites.
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListFavorites(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []models.FavoriteCity{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": list})
}

// GetFavorite handles GET /favorites/{city}.
func (h *Handler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityVar(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":     city,
		"favorite": h.repo.IsFavorite(r.Context(), city),
	})
}

// PutFavorite handles PUT /favorites/{city}. The favorite is built from the
// latest weather for the city, fetched when the cache has nothing fresh.
func (h *Handler) PutFavorite(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityVar(w, r)
	if !ok {
		return
	}
	rec, err := h.repo.FetchByCity(r.Context(), city, false)
	h.recordOutcome(rec, err)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	id, err := h.repo.AddFavorite(r.Context(), rec)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"city":     rec.CityName,
		"favorite": true,
	})
}

// DeleteFavorite handles DELETE /favorites/{city}.
func (h *Handler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityVar(w, r)
	if !ok {
		return
	}
	if err := h.repo.RemoveFavorite(r.Context(), city); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamFavorites handles GET /favorites/stream as Server-Sent Events. One
// "favorites" event carries the full list; a new one follows every change.
func (h *Handler) StreamFavorites(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "streaming is not supported")
		return
	}
	ctx := r.Context()
	updates, err := h.repo.Favorites(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := observability.LoggerFromContext(ctx, h.logger)
	logger.Debug("favorites stream opened")
	defer logger.Debug("favorites stream closed")

	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-updates:
			if !ok {
				return
			}
			if list == nil {
				list = []models.FavoriteCity{}
			}
			data, err := json.Marshal(list)
			if err != nil {
				logger.Error("encode favorites", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: favorites\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) cityVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], cityMinLen, cityMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return "", false
	}
	return city, true
}
