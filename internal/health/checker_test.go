package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache/internal/lifecycle"
)

func TestChecker_Evaluate(t *testing.T) {
	cfg := Config{Window: time.Minute, ErrorPct: 50, MinSamples: 2}
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	tests := []struct {
		name       string
		shutdown   bool
		key        bool
		breaker    string
		check      CheckFunc
		successes  int
		failures   int
		wantStatus string
		wantCode   int
		wantReason string
	}{
		{"healthy", false, true, "closed", ok, 3, 0, StatusHealthy, http.StatusOK, ""},
		{"shutting down wins", true, false, "open", down, 0, 5, StatusShuttingDown, http.StatusServiceUnavailable, "signal"},
		{"store down", false, true, "closed", down, 0, 0, StatusUnhealthy, http.StatusServiceUnavailable, "store_unreachable"},
		{"missing key", false, false, "closed", ok, 0, 0, StatusDegraded, http.StatusServiceUnavailable, "api_key_missing"},
		{"circuit open", false, true, "open", ok, 0, 0, StatusDegraded, http.StatusServiceUnavailable, "circuit_open"},
		{"error rate breach", false, true, "closed", ok, 1, 1, StatusDegraded, http.StatusServiceUnavailable, "error_rate_breach"},
		{"too few samples", false, true, "closed", ok, 0, 1, StatusHealthy, http.StatusOK, ""},
		{"below threshold", false, true, "half-open", ok, 3, 1, StatusHealthy, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := lifecycle.New()
			state.SetShuttingDown(tt.shutdown)
			tr := NewTracker(0)
			for i := 0; i < tt.successes; i++ {
				tr.RecordSuccess()
			}
			for i := 0; i < tt.failures; i++ {
				tr.RecordError()
			}
			breaker := tt.breaker
			c := NewChecker(state, tr, cfg, tt.key, func() string { return breaker })
			c.AddCheck("store", tt.check)

			got := c.Evaluate(context.Background())
			if got.Status != tt.wantStatus || got.HTTPStatus != tt.wantCode || got.Reason != tt.wantReason {
				t.Errorf("Evaluate() = %s/%d/%q, want %s/%d/%q", got.Status, got.HTTPStatus, got.Reason, tt.wantStatus, tt.wantCode, tt.wantReason)
			}
			if got.Checks["circuitBreaker"] != tt.breaker {
				t.Errorf("circuitBreaker check = %q, want %q", got.Checks["circuitBreaker"], tt.breaker)
			}
		})
	}
}

func TestChecker_NoBreaker(t *testing.T) {
	c := NewChecker(lifecycle.New(), nil, Config{}, true, nil)
	got := c.Evaluate(context.Background())
	if got.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", got.Status)
	}
	if _, ok := got.Checks["circuitBreaker"]; ok {
		t.Error("circuitBreaker check reported without a breaker")
	}
}
