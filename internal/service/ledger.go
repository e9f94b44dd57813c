package service

import (
	"context"
	"fmt"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type availabilityLedger struct {
	store  repository.Store
	policy domain.StatusPolicy
	retry  RetryPolicy
}

func NewAvailabilityLedger(store repository.Store, policy domain.StatusPolicy, retry RetryPolicy) AvailabilityLedger {
	return &availabilityLedger{store: store, policy: policy, retry: retry}
}

// lockDays creates any missing ledger rows of [start, end] from the product's
// owned quantity and returns every day of the range locked, in date order.
func lockDays(ctx context.Context, tx repository.Tx, product *domain.Product, start, end domain.Date, policy domain.StatusPolicy) ([]domain.AvailabilityDay, error) {
	dates := domain.DateRange(start, end)
	seeds := make([]domain.AvailabilityDay, len(dates))
	for i, d := range dates {
		seeds[i] = domain.NewAvailabilityDay(product.ID, d, product.OwnedQuantity, policy)
	}
	if err := tx.Availability().Ensure(ctx, seeds); err != nil {
		return nil, err
	}

	days, err := tx.Availability().LockRange(ctx, product.ID, start, end)
	if err != nil {
		return nil, err
	}
	if len(days) != len(dates) {
		return nil, fmt.Errorf("ledger for product %s returned %d of %d days", product.ID, len(days), len(dates))
	}
	return days, nil
}

func (l *availabilityLedger) GetOrCreate(ctx context.Context, productID string, day domain.Date) (*domain.AvailabilityDay, error) {
	days, err := l.Read(ctx, productID, day, day)
	if err != nil {
		return nil, err
	}
	return &days[0], nil
}

func (l *availabilityLedger) Read(ctx context.Context, productID string, start, end domain.Date) ([]domain.AvailabilityDay, error) {
	ctx, span := tracer.Start(ctx, "AvailabilityLedger.Read", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.String("range.start", start.String()),
		attribute.String("range.end", end.String()),
	))
	var err error
	defer func() { endSpan(span, err) }()

	if err = l.policy.CheckRange(start, end); err != nil {
		return nil, err
	}

	var days []domain.AvailabilityDay
	err = RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return l.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			product, err := tx.Products().GetByID(ctx, productID)
			if err != nil {
				return err
			}
			days, err = lockDays(ctx, tx, product, start, end, l.policy)
			return err
		})
	}, l.retry.options("AvailabilityLedger.Read")...)
	if err != nil {
		return nil, err
	}
	return days, nil
}

func (l *availabilityLedger) AdjustTotal(ctx context.Context, productID string, from, to domain.Date, newTotal int) error {
	ctx, span := tracer.Start(ctx, "AvailabilityLedger.AdjustTotal", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("total", newTotal),
	))
	var err error
	defer func() { endSpan(span, err) }()

	err = RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return l.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			return l.AdjustTotalTx(ctx, tx, productID, from, to, newTotal)
		})
	}, l.retry.options("AvailabilityLedger.AdjustTotal")...)
	return err
}

// AdjustTotalTx sets total_quantity on every stored day of [from, to]. A zero
// to means every stored day from "from" on. Fails without writing when any
// day already has more reserved than newTotal.
func (l *availabilityLedger) AdjustTotalTx(ctx context.Context, tx repository.Tx, productID string, from, to domain.Date, newTotal int) error {
	logger.EnterMethod("availabilityLedger.AdjustTotalTx", "productID", productID, "from", from, "to", to, "newTotal", newTotal)

	if newTotal < 0 {
		err := fmt.Errorf("%w: total quantity must not be negative", domain.ErrInvalidArgument)
		logger.ExitMethodWithError("availabilityLedger.AdjustTotalTx", err)
		return err
	}
	if !to.IsZero() {
		if err := l.policy.CheckRange(from, to); err != nil {
			logger.ExitMethodWithError("availabilityLedger.AdjustTotalTx", err)
			return err
		}
	}

	days, err := tx.Availability().LockRange(ctx, productID, from, to)
	if err != nil {
		logger.ExitMethodWithError("availabilityLedger.AdjustTotalTx", err)
		return err
	}

	var conflicts []domain.Date
	maxReserved := 0
	for i := range days {
		if days[i].ReservedQuantity > maxReserved {
			maxReserved = days[i].ReservedQuantity
		}
		if err := days[i].SetTotal(newTotal, l.policy); err != nil {
			conflicts = append(conflicts, days[i].Day)
		}
	}
	if len(conflicts) > 0 {
		err := &domain.CapacityError{
			ProductID:        productID,
			Requested:        maxReserved,
			MinAvailable:     newTotal,
			ConflictingDates: conflicts,
		}
		logger.ExitMethodWithError("availabilityLedger.AdjustTotalTx", err)
		return err
	}

	for i := range days {
		if err := tx.Availability().Save(ctx, &days[i]); err != nil {
			logger.ExitMethodWithError("availabilityLedger.AdjustTotalTx", err)
			return err
		}
	}

	logger.ExitMethod("availabilityLedger.AdjustTotalTx", "productID", productID, "days", len(days))
	return nil
}
