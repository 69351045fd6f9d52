package application

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs every configured job once a day for the previous day.
type Scheduler struct {
	runner  *Runner
	jobs    JobSet
	dailyAt string
	logger  zerolog.Logger
	cron    *gocron.Scheduler
	now     func() time.Time
}

// NewScheduler constructs a Scheduler firing at dailyAt (HH:MM, UTC).
func NewScheduler(runner *Runner, jobs JobSet, dailyAt string, logger zerolog.Logger) (*Scheduler, error) {
	if _, err := time.Parse("15:04", dailyAt); err != nil {
		return nil, fmt.Errorf("schedule: invalid daily_at %q: %w", dailyAt, err)
	}
	return &Scheduler{
		runner:  runner,
		jobs:    jobs,
		dailyAt: dailyAt,
		logger:  logger,
		cron:    gocron.NewScheduler(time.UTC),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start registers the daily trigger and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.runner == nil {
		return nil
	}
	if _, err := s.cron.Every(1).Day().At(s.dailyAt).Do(s.runOnce, ctx); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	s.cron.StartAsync()
	s.logger.Info().Str("daily_at", s.dailyAt).Int("jobs", len(s.jobs.Jobs)).Msg("report scheduler started")
	<-ctx.Done()
	s.cron.Stop()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	today := s.now()
	yesterday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	jobs := s.jobs.WithDate(yesterday).Jobs
	if _, err := s.runner.RunAll(ctx, jobs); err != nil {
		s.logger.Error().Err(err).Str("day", yesterday.Format("2006-01-02")).Msg("scheduled report run failed")
	}
}
