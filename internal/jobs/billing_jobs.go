package jobs

import (
	"context"

	"rental-inventory-backend/internal/logger"
)

// maxBatchesPerRun caps how many outbox batches one DispatchOutbox run drains.
const maxBatchesPerRun = 10

// DispatchOutbox publishes pending outbox events (invoice requests, late fees,
// status changes) to the configured sinks. It keeps draining batches until
// one comes back empty or with failures.
func (jr *JobRunner) DispatchOutbox() error {
	return jr.runWithRecovery("DispatchOutbox", func(ctx context.Context) error {
		var dispatched, failed int
		for i := 0; i < maxBatchesPerRun; i++ {
			stats, err := jr.dispatcher.DispatchPending(ctx)
			dispatched += stats.Dispatched
			failed += stats.Failed
			if err != nil {
				return err
			}
			if stats.Dispatched == 0 || stats.Failed > 0 {
				break
			}
		}
		if dispatched > 0 || failed > 0 {
			logger.Info("Outbox drained", "dispatched", dispatched, "failed", failed)
		}
		return nil
	})
}
