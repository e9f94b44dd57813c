package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"rental-inventory-backend/internal/jobs"
	"rental-inventory-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision. A job still running
	// when its next tick fires is skipped.
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	// Publish outbox events to invoicing and Kafka
	if _, err := s.cron.AddFunc(cfg.DispatchOutbox, func() { _ = s.jobs.DispatchOutbox() }); err != nil {
		logger.Error("Failed to register DispatchOutbox job", "error", err)
		return fmt.Errorf("register DispatchOutbox job: %w", err)
	}

	// Nightly overdue report
	if _, err := s.cron.AddFunc(cfg.ReportOverdue, func() { _ = s.jobs.ReportOverdue() }); err != nil {
		logger.Error("Failed to register ReportOverdue job", "error", err)
		return fmt.Errorf("register ReportOverdue job: %w", err)
	}

	logger.Info("All cron jobs registered successfully", "count", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler has jobs registered
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
