package jobs

import (
	"context"

	"rental-inventory-backend/internal/logger"
)

// ReportOverdue records an order.overdue event for every in-progress rental
// past its return date.
func (jr *JobRunner) ReportOverdue() error {
	return jr.runWithRecovery("ReportOverdue", func(ctx context.Context) error {
		n, err := jr.orders.ReportOverdue(ctx)
		if err != nil {
			return err
		}
		logger.Info("Reported overdue rentals", "count", n)
		return nil
	})
}
