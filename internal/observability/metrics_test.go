package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, repository, and store packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/weather/{city}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/weather/{city}").Observe(0.01)
	RemoteCallsTotal.WithLabelValues("success").Inc()
	RemoteCallDuration.WithLabelValues("success").Observe(0.1)
	RemoteErrorsTotal.WithLabelValues("timeout").Inc()
	CacheHitsTotal.Inc()
	CacheMissesTotal.WithLabelValues("expired").Inc()
	StaleCacheServesTotal.Inc()
	StaleCacheAgeSeconds.Observe(3600)
	StoreOperationDurationSeconds.WithLabelValues("get", "success").Observe(0.001)
	StoreErrorsTotal.WithLabelValues("upsert").Inc()
	FavoriteMutationsTotal.WithLabelValues("add", "success").Inc()
	JobRunsTotal.WithLabelValues("purge", "success").Inc()
	JobDurationSeconds.WithLabelValues("purge").Observe(0.2)
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"bogus", 0},
	}
	for _, tt := range tests {
		if got := CircuitBreakerStateValue(tt.state); got != tt.want {
			t.Errorf("CircuitBreakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
	RecordCircuitBreakerTransition("closed", "open")
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
