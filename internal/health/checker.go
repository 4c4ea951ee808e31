package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/kjstillabower/weather-cache/internal/lifecycle"
)

// Status values reported by Evaluate.
const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusUnhealthy    = "unhealthy"
	StatusShuttingDown = "shutting-down"
)

// CheckFunc pings a dependency. A non-nil error marks it unhealthy.
type CheckFunc func(ctx context.Context) error

// Config holds the degraded-state thresholds.
type Config struct {
	Window   time.Duration
	ErrorPct int
	// MinSamples is the number of outcomes required before the error rate
	// counts. Defaults to 5.
	MinSamples int
}

// Result is one health evaluation.
type Result struct {
	Status     string
	HTTPStatus int
	Reason     string
	Checks     map[string]string
}

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Checker evaluates health in priority order:
// shutting-down > failing dependency > API key missing > circuit open > error rate > healthy.
type Checker struct {
	state         *lifecycle.State
	tracker       *Tracker
	cfg           Config
	keyConfigured bool
	breakerState  func() string
	checks        []namedCheck
}

// NewChecker builds a Checker. breakerState may be nil when no circuit
// breaker is configured.
func NewChecker(state *lifecycle.State, tracker *Tracker, cfg Config, keyConfigured bool, breakerState func() string) *Checker {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	return &Checker{
		state:         state,
		tracker:       tracker,
		cfg:           cfg,
		keyConfigured: keyConfigured,
		breakerState:  breakerState,
	}
}

// AddCheck registers a dependency ping reported under name.
func (c *Checker) AddCheck(name string, fn CheckFunc) {
	c.checks = append(c.checks, namedCheck{name: name, fn: fn})
	sort.SliceStable(c.checks, func(i, j int) bool { return c.checks[i].name < c.checks[j].name })
}

// Evaluate runs the dependency checks and derives the overall status.
func (c *Checker) Evaluate(ctx context.Context) Result {
	checks := make(map[string]string, len(c.checks)+2)
	failing := ""
	for _, ch := range c.checks {
		if err := ch.fn(ctx); err != nil {
			checks[ch.name] = StatusUnhealthy
			if failing == "" {
				failing = ch.name
			}
			continue
		}
		checks[ch.name] = StatusHealthy
	}

	if c.keyConfigured {
		checks["weatherApiKey"] = "configured"
	} else {
		checks["weatherApiKey"] = "missing"
	}
	breaker := ""
	if c.breakerState != nil {
		breaker = c.breakerState()
		checks["circuitBreaker"] = breaker
	}

	switch {
	case c.state != nil && c.state.IsShuttingDown():
		return Result{StatusShuttingDown, http.StatusServiceUnavailable, "signal", checks}
	case failing != "":
		return Result{StatusUnhealthy, http.StatusServiceUnavailable, failing + "_unreachable", checks}
	case !c.keyConfigured:
		return Result{StatusDegraded, http.StatusServiceUnavailable, "api_key_missing", checks}
	case breaker == "open":
		return Result{StatusDegraded, http.StatusServiceUnavailable, "circuit_open", checks}
	}

	if c.tracker != nil && c.cfg.Window > 0 && c.cfg.ErrorPct > 0 {
		errs, total := c.tracker.ErrorRate(c.cfg.Window)
		if total >= c.cfg.MinSamples {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(c.cfg.ErrorPct) {
				return Result{StatusDegraded, http.StatusServiceUnavailable, "error_rate_breach", checks}
			}
		}
	}
	return Result{StatusHealthy, http.StatusOK, "", checks}
}
