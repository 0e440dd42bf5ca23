package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const DefaultCleanupSchedule = "@hourly"

type SchedulerConfig struct {
	Schedule string
	MaxAge   time.Duration
	Location *time.Location
}

// Scheduler runs CleanupExpired on a cron schedule.
type Scheduler struct {
	manager Manager
	config  SchedulerConfig
	cron    *cron.Cron
}

func NewScheduler(manager Manager, config SchedulerConfig) (*Scheduler, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultCleanupSchedule
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", config.Schedule, err)
	}

	return &Scheduler{
		manager: manager,
		config:  config,
		cron:    cron.New(cron.WithLocation(config.Location)),
	}, nil
}

// Start registers the cleanup job and starts the cron loop. The job runs with
// the logger of ctx; cancelling ctx aborts a cleanup in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("unable to schedule report cleanup: %w", err)
	}

	s.cron.Start()
	logger.Info().
		Str("schedule", s.config.Schedule).
		Dur("max_age", s.config.MaxAge).
		Msg("report cleanup scheduler started")
	return nil
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	if _, err := s.manager.CleanupExpired(ctx, s.config.MaxAge); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("report cleanup failed")
	}
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
