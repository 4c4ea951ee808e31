package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-cache/internal/models"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	// WeatherAPIKey may be empty; every remote call then fails with a
	// configuration error instead of the process refusing to start.
	WeatherAPIKey     string
	WeatherAPIURL     string        `validate:"required,url"`
	WeatherAPIUnits   models.Units  `validate:"oneof=metric imperial standard"`
	WeatherAPITimeout time.Duration `validate:"gt=0"`

	CircuitBreakerEnabled     bool
	CircuitBreakerMaxRequests uint32        `validate:"gte=1"`
	CircuitBreakerInterval    time.Duration `validate:"gte=0"`
	CircuitBreakerTimeout     time.Duration `validate:"gt=0"`

	StoreBackend string `validate:"oneof=memory sqlite postgres"`
	SQLitePath   string `validate:"required_if=StoreBackend sqlite"`
	PostgresDSN  string `validate:"required_if=StoreBackend postgres"`

	MemcachedEnabled      bool
	MemcachedAddrs        string `validate:"required_if=MemcachedEnabled true"`
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	MemcachedTTL          time.Duration

	PurgeInterval         time.Duration `validate:"gte=0"`
	PurgeMaxAge           time.Duration `validate:"gte=0"`
	WarmFavoritesInterval time.Duration `validate:"gte=0"`

	RequestTimeout time.Duration
	RateLimitRPS   int `validate:"gt=0"`
	RateLimitBurst int `validate:"gt=0"`

	ShutdownTimeout time.Duration

	HealthWindow   time.Duration `validate:"gt=0"`
	HealthErrorPct int           `validate:"gt=0,lte=100"`
}

// KeyConfigured reports whether a usable API key was provided.
func (c *Config) KeyConfigured() bool {
	return c.WeatherAPIKey != "" && c.WeatherAPIKey != "YOUR_API_KEY_HERE"
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL            string `yaml:"url"`
		Units          string `yaml:"units"`
		Timeout        string `yaml:"timeout"`
		CircuitBreaker struct {
			Enabled     *bool  `yaml:"enabled"`
			MaxRequests uint32 `yaml:"max_requests"`
			Interval    string `yaml:"interval"`
			Timeout     string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"weather_api"`

	Store struct {
		Backend string `yaml:"backend"`
		SQLite  struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
		Memcached struct {
			Enabled      bool   `yaml:"enabled"`
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
			TTL          string `yaml:"ttl"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Jobs struct {
		PurgeInterval         string `yaml:"purge_interval"`
		PurgeMaxAge           string `yaml:"purge_max_age"`
		WarmFavoritesInterval string `yaml:"warm_favorites_interval"`
	} `yaml:"jobs"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Health struct {
		Window   string `yaml:"window"`
		ErrorPct int    `yaml:"error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	DatabaseURL   string `yaml:"database_url"`
}

var validate = validator.New()

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev),
// then config/secrets.yaml. Env vars WEATHER_API_KEY, DATABASE_URL,
// STORE_BACKEND, SQLITE_PATH and MEMCACHED_ADDRS override file values.
// Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey = strings.TrimSpace(firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey))
	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherAPIUnits = models.Units(strings.ToLower(firstNonEmpty(fc.WeatherAPI.Units, string(models.UnitsMetric))))
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 30*time.Second)

	cb := fc.WeatherAPI.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled == nil || *cb.Enabled
	cfg.CircuitBreakerMaxRequests = cb.MaxRequests
	if cfg.CircuitBreakerMaxRequests == 0 {
		cfg.CircuitBreakerMaxRequests = 1
	}
	cfg.CircuitBreakerInterval = parseDuration(cb.Interval, time.Minute)
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(firstNonEmpty(os.Getenv("STORE_BACKEND"), fc.Store.Backend, "memory")))
	cfg.SQLitePath = firstNonEmpty(os.Getenv("SQLITE_PATH"), fc.Store.SQLite.Path, "weather.db")
	cfg.PostgresDSN = firstNonEmpty(os.Getenv("DATABASE_URL"), sec.DatabaseURL, fc.Store.Postgres.DSN)

	cfg.MemcachedEnabled = fc.Store.Memcached.Enabled
	cfg.MemcachedAddrs = strings.TrimSpace(firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Store.Memcached.Addrs, "localhost:11211"))
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.MemcachedTTL = parseDuration(fc.Store.Memcached.TTL, 24*time.Hour)

	cfg.PurgeInterval = parseDurationOrZero(fc.Jobs.PurgeInterval, time.Hour)
	cfg.PurgeMaxAge = parseDurationOrZero(fc.Jobs.PurgeMaxAge, 24*time.Hour)
	cfg.WarmFavoritesInterval = parseDurationOrZero(fc.Jobs.WarmFavoritesInterval, 0)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 35*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.HealthWindow = parseDuration(fc.Health.Window, time.Minute)
	cfg.HealthErrorPct = fc.Health.ErrorPct
	if cfg.HealthErrorPct <= 0 {
		cfg.HealthErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is; zero disables jobs.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// check runs struct-tag validation, then the cross-field rules. RequestTimeout
// is raised above WeatherAPITimeout when needed.
func check(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.PurgeInterval > 0 && cfg.PurgeMaxAge <= 0 {
		return fmt.Errorf("invalid config: jobs.purge_max_age must be positive when jobs.purge_interval is set")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + 5*time.Second
	}
	return nil
}
