package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/client"
	"github.com/kjstillabower/weather-cache/internal/health"
	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
	"github.com/kjstillabower/weather-cache/internal/repository"
	"github.com/kjstillabower/weather-cache/internal/validation"
)

const (
	cityMinLen = 1
	cityMaxLen = 100
)

// WeatherRepository is the subset of *repository.Repository served over HTTP.
type WeatherRepository interface {
	FetchByCity(ctx context.Context, city string, forceRefresh bool) (models.WeatherRecord, error)
	FetchByCoordinates(ctx context.Context, lat, lon float64) (models.WeatherRecord, error)
	CachedWeather(ctx context.Context) ([]models.WeatherRecord, error)
	PurgeCache(ctx context.Context, city string) error
	PurgeAll(ctx context.Context) error

	IsFavorite(ctx context.Context, city string) bool
	AddFavorite(ctx context.Context, rec models.WeatherRecord) (int64, error)
	RemoveFavorite(ctx context.Context, city string) error
	ListFavorites(ctx context.Context) ([]models.FavoriteCity, error)
	Favorites(ctx context.Context) (<-chan []models.FavoriteCity, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	repo    WeatherRepository
	checker *health.Checker
	tracker *health.Tracker
	logger  *zap.Logger
	version string

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. checker and tracker may be nil.
func NewHandler(repo WeatherRepository, checker *health.Checker, tracker *health.Tracker, logger *zap.Logger, version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{
		repo:    repo,
		checker: checker,
		tracker: tracker,
		logger:  logger,
		version: version,
	}
}

// GetWeather handles GET /weather/{city}. refresh=true bypasses a fresh cache entry.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityVar(w, r)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	rec, err := h.repo.FetchByCity(r.Context(), city, refresh)
	h.recordOutcome(rec, err)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetWeatherByCoordinates handles GET /weather?lat=&lon=.
func (h *Handler) GetWeatherByCoordinates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := validation.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	rec, err := h.repo.FetchByCoordinates(r.Context(), coords.Lat, coords.Lon)
	h.recordOutcome(rec, err)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListCache handles GET /cache.
func (h *Handler) ListCache(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.CachedWeather(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []models.WeatherRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": list})
}

// PurgeCity handles DELETE /cache/{city}.
func (h *Handler) PurgeCity(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityVar(w, r)
	if !ok {
		return
	}
	if err := h.repo.PurgeCache(r.Context(), city); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeAll handles DELETE /cache.
func (h *Handler) PurgeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.PurgeAll(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordOutcome feeds the health tracker. A stale fallback counts as an
// upstream error; an unknown city does not.
func (h *Handler) recordOutcome(rec models.WeatherRecord, err error) {
	if h.tracker == nil {
		return
	}
	var fetchErr *repository.FetchError
	switch {
	case errors.As(err, &fetchErr) && fetchErr.Category == client.ErrorCategoryNotFound:
		h.tracker.RecordSuccess()
	case err != nil, rec.Stale:
		h.tracker.RecordError()
	default:
		h.tracker.RecordSuccess()
	}
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := health.Result{Status: health.StatusHealthy, HTTPStatus: http.StatusOK, Checks: map[string]string{}}
	if h.checker != nil {
		result = h.checker.Evaluate(r.Context())
	}

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.Status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.Status),
			zap.String("reason", result.Reason))
	}
	h.healthStatusPrev = result.Status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.Status,
		"service":   "weather-cache",
		"version":   h.version,
		"checks":    result.Checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	writeJSON(w, result.HTTPStatus, resp)
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

var categoryStatus = map[client.ErrorCategory]int{
	client.ErrorCategoryConfiguration:  http.StatusInternalServerError,
	client.ErrorCategoryNameResolution: http.StatusServiceUnavailable,
	client.ErrorCategoryTLS:            http.StatusServiceUnavailable,
	client.ErrorCategoryTimeout:        http.StatusGatewayTimeout,
	client.ErrorCategoryAuthentication: http.StatusBadGateway,
	client.ErrorCategoryNotFound:       http.StatusNotFound,
	client.ErrorCategoryUnknown:        http.StatusBadGateway,
}

// writeFetchError maps a repository fetch failure onto a status code. The
// category doubles as the error code.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	var fetchErr *repository.FetchError
	if !errors.As(err, &fetchErr) {
		writeError(w, r, http.StatusBadGateway, "UNKNOWN", "weather request failed")
		return
	}
	status, ok := categoryStatus[fetchErr.Category]
	if !ok {
		status = http.StatusBadGateway
	}
	writeError(w, r, status, strings.ToUpper(string(fetchErr.Category)), fetchErr.Message)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context(), zap.NewNop()).Error("store operation failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", "cache store unavailable")
}
