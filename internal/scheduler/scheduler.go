// Package scheduler runs the periodic cache maintenance jobs: purging old
// weather snapshots and keeping favorite cities warm.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache/internal/models"
	"github.com/kjstillabower/weather-cache/internal/observability"
)

const (
	jobPurge = "purge"
	jobWarm  = "warm_favorites"
)

// Repository is the subset of repository.Repository the jobs use.
type Repository interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
	ListFavorites(ctx context.Context) ([]models.FavoriteCity, error)
	FetchByCity(ctx context.Context, city string, forceRefresh bool) (models.WeatherRecord, error)
}

// Config controls which jobs run and how often. A zero interval disables
// that job.
type Config struct {
	PurgeInterval time.Duration
	PurgeMaxAge   time.Duration
	WarmInterval  time.Duration
	// JobTimeout bounds a single run. Defaults to 30s.
	JobTimeout time.Duration
}

// Scheduler owns a gocron scheduler. Runs of the same job never overlap.
type Scheduler struct {
	cron   *gocron.Scheduler
	repo   Repository
	cfg    Config
	logger *zap.Logger
}

// New creates a Scheduler. Call Start to begin running jobs.
func New(repo Repository, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()
	return &Scheduler{cron: cron, repo: repo, cfg: cfg, logger: logger}
}

// Start registers the enabled jobs and starts the scheduler. Each job runs
// once immediately and then at its interval.
func (s *Scheduler) Start() error {
	if s.cfg.PurgeInterval > 0 && s.cfg.PurgeMaxAge > 0 {
		if _, err := s.cron.Every(s.cfg.PurgeInterval).Do(s.runJob, jobPurge, s.Purge); err != nil {
			return fmt.Errorf("schedule %s: %w", jobPurge, err)
		}
	}
	if s.cfg.WarmInterval > 0 {
		if _, err := s.cron.Every(s.cfg.WarmInterval).Do(s.runJob, jobWarm, s.WarmFavorites); err != nil {
			return fmt.Errorf("schedule %s: %w", jobWarm, err)
		}
	}
	if len(s.cron.Jobs()) == 0 {
		s.logger.Info("scheduler: no jobs enabled")
		return nil
	}
	s.cron.StartAsync()
	s.logger.Info("scheduler started",
		zap.Duration("purgeInterval", s.cfg.PurgeInterval),
		zap.Duration("purgeMaxAge", s.cfg.PurgeMaxAge),
		zap.Duration("warmInterval", s.cfg.WarmInterval),
	)
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.cron != nil && s.cron.IsRunning() {
		s.cron.Stop()
	}
}

func (s *Scheduler) runJob(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	observability.JobDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.JobRunsTotal.WithLabelValues(name, "error").Inc()
		s.logger.Warn("scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	observability.JobRunsTotal.WithLabelValues(name, "success").Inc()
}

// Purge deletes snapshots older than the configured max age.
func (s *Scheduler) Purge(ctx context.Context) error {
	n, err := s.repo.PurgeOlderThan(ctx, s.cfg.PurgeMaxAge)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	s.logger.Info("purged old weather records", zap.Int64("deleted", n), zap.Duration("maxAge", s.cfg.PurgeMaxAge))
	return nil
}

// WarmFavorites fetches every favorite city concurrently so its snapshot
// stays fresh. Fresh snapshots are left alone. Returns the joined errors of
// cities that could not be served at all.
func (s *Scheduler) WarmFavorites(ctx context.Context) error {
	favs, err := s.repo.ListFavorites(ctx)
	if err != nil {
		return fmt.Errorf("list favorites: %w", err)
	}
	if len(favs) == 0 {
		return nil
	}

	start := time.Now()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, fav := range favs {
		city := fav.CityName
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.FetchByCity(ctx, city, false); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", city, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.logger.Info("favorites warm complete",
		zap.Int("cities", len(favs)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)),
	)
	return errors.Join(errs...)
}
