package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
)

// PlaceholderAPIKey is the value shipped in sample configs. It is treated the
// same as a missing key.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// WeatherSource fetches current weather from a remote service. Implementations
// make exactly one upstream attempt per call.
type WeatherSource interface {
	GetByCity(ctx context.Context, city string) (models.WeatherRecord, error)
	GetByCoordinates(ctx context.Context, lat, lon float64) (models.WeatherRecord, error)
}

var (
	ErrAPIKeyNotConfigured = errors.New("API key not configured")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamFailure     = errors.New("upstream failure")
	ErrCircuitOpen         = errors.New("circuit breaker open")
)

// OpenWeatherClient calls the OpenWeather current weather endpoint.
type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	units   models.Units
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewOpenWeatherClient builds a client for apiURL. timeout bounds connect,
// TLS handshake and response header wait individually. An empty apiKey is
// accepted; every call then fails with ErrAPIKeyNotConfigured.
func NewOpenWeatherClient(apiKey, apiURL string, units models.Units, timeout time.Duration) (*OpenWeatherClient, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if units == "" {
		units = models.UnitsMetric
	}
	if !units.Valid() {
		return nil, fmt.Errorf("unsupported units %q", units)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}

	return &OpenWeatherClient{
		apiKey:  strings.TrimSpace(apiKey),
		apiURL:  apiURL,
		units:   units,
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			Timeout:   3 * timeout,
		},
		now: time.Now,
	}, nil
}

// SetCircuitBreaker routes every upstream call through cb. Pass nil to disable.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// NewCircuitBreaker returns a breaker that only counts failures pointing at an
// unhealthy upstream. Unknown cities and bad credentials do not trip it.
func NewCircuitBreaker(name string, maxRequests uint32, interval, timeout time.Duration, onStateChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrUnauthorized) ||
				errors.Is(err, ErrAPIKeyNotConfigured)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(from, to)
			}
		},
	})
}

// KeyConfigured reports whether a usable API key is set.
func (c *OpenWeatherClient) KeyConfigured() bool {
	return c.apiKey != "" && c.apiKey != PlaceholderAPIKey
}

// GetByCity fetches current weather for a city name.
func (c *OpenWeatherClient) GetByCity(ctx context.Context, city string) (models.WeatherRecord, error) {
	params := url.Values{}
	params.Set("q", city)
	return c.call(ctx, params, city)
}

// GetByCoordinates fetches current weather for a latitude/longitude pair.
func (c *OpenWeatherClient) GetByCoordinates(ctx context.Context, lat, lon float64) (models.WeatherRecord, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.call(ctx, params, "")
}

func (c *OpenWeatherClient) call(ctx context.Context, params url.Values, fallbackName string) (models.WeatherRecord, error) {
	if !c.KeyConfigured() {
		observability.RemoteCallsTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, ErrAPIKeyNotConfigured
	}
	if c.breaker == nil {
		return c.callAPI(ctx, params, fallbackName)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callAPI(ctx, params, fallbackName)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.RemoteCallsTotal.WithLabelValues("circuit_open").Inc()
			return models.WeatherRecord{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return models.WeatherRecord{}, err
	}
	rec, ok := result.(models.WeatherRecord)
	if !ok {
		return models.WeatherRecord{}, fmt.Errorf("unexpected result type %T from circuit breaker", result)
	}
	return rec, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, params url.Values, fallbackName string) (models.WeatherRecord, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, params)
	if err != nil {
		observability.RemoteCallsTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.RemoteCallsTotal.WithLabelValues("error").Inc()
		observability.RemoteCallDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.WeatherRecord{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.RemoteCallsTotal.WithLabelValues(status).Inc()
	observability.RemoteCallDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return models.WeatherRecord{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("parse response: %w", err)
	}

	return mapResponse(apiResp, fallbackName, c.now()), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params.Set("appid", c.apiKey)
	params.Set("units", string(c.units))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", ErrNotFound, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}

// MaskKey returns the first four characters of key for log output.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
