// Package scheduler runs periodic maintenance jobs, currently the retention
// sweep of the notification delivery log.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	defaultInterval = 24 * time.Hour
	pruneTimeout    = time.Minute
)

// Pruner deletes delivery log entries older than a cutoff.
type Pruner interface {
	DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the scheduler configuration.
type Config struct {
	Store Pruner
	// Retention is how long delivery log entries are kept. Zero disables pruning.
	Retention time.Duration
	// Interval between sweeps. Defaults to 24h.
	Interval time.Duration
	Logger   *slog.Logger
	// Now is used for tests. Defaults to time.Now.
	Now func() time.Time
}

// Scheduler manages maintenance jobs using gocron.
type Scheduler struct {
	cron   gocron.Scheduler
	cfg    Config
	logger *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cron: cron, cfg: cfg, logger: logger}, nil
}

// Start schedules the retention sweep, running it once immediately, and
// starts the gocron scheduler. With zero retention no job is scheduled.
func (s *Scheduler) Start() error {
	if s.cfg.Retention > 0 {
		_, err := s.cron.NewJob(
			gocron.DurationJob(s.cfg.Interval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
				defer cancel()
				if _, err := s.Prune(ctx); err != nil {
					s.logger.Warn("delivery log retention sweep failed", "error", err)
				}
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("scheduling retention sweep: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("maintenance scheduler started",
		"retention", s.cfg.Retention.String(), "interval", s.cfg.Interval.String())
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// Prune deletes entries older than the retention window and returns how many
// were removed.
func (s *Scheduler) Prune(ctx context.Context) (int64, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}
	cutoff := s.cfg.Now().UTC().Add(-s.cfg.Retention)
	n, err := s.cfg.Store.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning delivery log: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned delivery log", "deleted", n, "before", cutoff)
	}
	return n, nil
}
