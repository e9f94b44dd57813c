package jobs

import (
	"context"
	"fmt"
	"time"

	"rental-inventory-backend/internal/config"
	"rental-inventory-backend/internal/events"
	"rental-inventory-backend/internal/logger"
)

// jobTimeout bounds a single job execution.
const jobTimeout = 5 * time.Minute

// OutboxDispatcher drains pending outbox events to their sinks.
type OutboxDispatcher interface {
	DispatchPending(ctx context.Context) (events.DispatchStats, error)
}

// OverdueReporter emits overdue notices for rentals past their return date.
type OverdueReporter interface {
	ReportOverdue(ctx context.Context) (int, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	dispatcher OutboxDispatcher
	orders     OverdueReporter
	config     *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(dispatcher OutboxDispatcher, orders OverdueReporter, cfg *config.Config) *JobRunner {
	return &JobRunner{
		dispatcher: dispatcher,
		orders:     orders,
		config:     cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and a timeout
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	logger.Info("Starting job", "job", jobName)
	if err := jobFunc(ctx); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	logger.Info("Job completed", "job", jobName, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() error {
	if err := jr.DispatchOutbox(); err != nil {
		return err
	}
	if err := jr.ReportOverdue(); err != nil {
		return err
	}
	// overdue notices were just written to the outbox
	return jr.DispatchOutbox()
}
