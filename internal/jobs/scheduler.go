// Package jobs runs the service's background maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/atlasops/identity/internal/identity"
)

// Scheduler manages background jobs.
type Scheduler struct {
	cron  *cron.Cron
	store identity.Store
	log   zerolog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(store identity.Store, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		store: store,
		log:   log,
	}
}

// Start registers and starts the jobs.
func (s *Scheduler) Start() {
	// Reset expired usage windows daily at 4:00 AM.
	s.cron.AddFunc("0 4 * * *", func() {
		s.resetExpiredUsage()
	})

	s.cron.Start()
	s.log.Info().Msg("job scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) resetExpiredUsage() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.store.ResetExpiredUsage(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("usage reset job failed")
		return
	}
	if count > 0 {
		s.log.Info().Int64("accounts", count).Msg("reset expired usage windows")
	}
}
