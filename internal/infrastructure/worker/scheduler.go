// Package worker runs background jobs for the server.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/mpay/internal/usecase"
)

// Runner materializes due standing orders.
type Runner interface {
	RunDue(ctx context.Context, asOf time.Time) (*usecase.RunReport, error)
}

// Scheduler calls RunDue on a fixed interval.
type Scheduler struct {
	runner   Runner
	logger   zerolog.Logger
	interval time.Duration
	timeout  time.Duration
}

// Config for Scheduler.
type Config struct {
	Runner   Runner
	Logger   zerolog.Logger
	Interval time.Duration // Polling interval
	Timeout  time.Duration // Upper bound for a single run
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = cfg.Interval
	}

	return &Scheduler{
		runner:   cfg.Runner,
		logger:   cfg.Logger.With().Str("component", "scheduler").Logger(),
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
	}
}

// Start runs until ctx is cancelled. The first run happens immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one run. Errors are logged; the next tick tries again.
func (s *Scheduler) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.runner.RunDue(runCtx, time.Time{})
	if err != nil {
		s.logger.Error().Err(err).Msg("run due failed")
		return
	}

	failed := report.Failed()
	if report.Materialized() == 0 && len(failed) == 0 {
		return
	}

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("orders", len(report.Results)).
		Int("materialized", report.Materialized()).
		Int("failed", len(failed)).
		Msg("run due completed")
}
