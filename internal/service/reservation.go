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

type reservationEngine struct {
	store  repository.Store
	policy domain.StatusPolicy
	retry  RetryPolicy
}

func NewReservationEngine(store repository.Store, policy domain.StatusPolicy, retry RetryPolicy) ReservationEngine {
	return &reservationEngine{store: store, policy: policy, retry: retry}
}

func validateRequest(start, end domain.Date, quantity int, policy domain.StatusPolicy) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}
	return policy.CheckRange(start, end)
}

func rangeAttributes(productID string, start, end domain.Date, quantity int) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.String("range.start", start.String()),
		attribute.String("range.end", end.String()),
		attribute.Int("quantity", quantity),
	)
}

// CheckAvailability reports whether quantity is free on every day of the
// range. Days without a ledger row count as fully available and are not created.
func (e *reservationEngine) CheckAvailability(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.AvailabilityResult, error) {
	ctx, span := tracer.Start(ctx, "ReservationEngine.CheckAvailability", rangeAttributes(productID, start, end, quantity))
	var err error
	defer func() { endSpan(span, err) }()

	if err = validateRequest(start, end, quantity, e.policy); err != nil {
		return nil, err
	}

	product, err := e.store.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Availability().ListRange(ctx, productID, start, end)
	if err != nil {
		return nil, err
	}
	byDay := make(map[domain.Date]domain.AvailabilityDay, len(stored))
	for _, d := range stored {
		byDay[d.Day] = d
	}

	result := &domain.AvailabilityResult{ProductID: productID, ConflictingDates: []domain.Date{}}
	first := true
	for _, day := range domain.DateRange(start, end) {
		available := product.OwnedQuantity
		if row, ok := byDay[day]; ok {
			available = row.AvailableQuantity
		}
		if first || available < result.MinAvailable {
			result.MinAvailable = available
			first = false
		}
		if available < quantity {
			result.ConflictingDates = append(result.ConflictingDates, day)
		}
	}
	result.Available = len(result.ConflictingDates) == 0
	span.SetAttributes(attribute.Bool("available", result.Available), attribute.Int("min_available", result.MinAvailable))
	return result, nil
}

func (e *reservationEngine) Reserve(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.ReservationResult, error) {
	ctx, span := tracer.Start(ctx, "ReservationEngine.Reserve", rangeAttributes(productID, start, end, quantity))
	var err error
	defer func() { endSpan(span, err) }()

	var result *domain.ReservationResult
	err = RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return e.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			var txErr error
			result, txErr = e.ReserveTx(ctx, tx, productID, start, end, quantity)
			return txErr
		})
	}, e.retry.options("ReservationEngine.Reserve")...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReserveTx verifies and reserves the range inside the caller's transaction.
// Either every day is written or none is.
func (e *reservationEngine) ReserveTx(ctx context.Context, tx repository.Tx, productID string, start, end domain.Date, quantity int) (*domain.ReservationResult, error) {
	logger.EnterMethod("reservationEngine.ReserveTx", "productID", productID, "start", start, "end", end, "quantity", quantity)

	if err := validateRequest(start, end, quantity, e.policy); err != nil {
		logger.ExitMethodWithError("reservationEngine.ReserveTx", err)
		return nil, err
	}
	product, err := tx.Products().GetByID(ctx, productID)
	if err != nil {
		logger.ExitMethodWithError("reservationEngine.ReserveTx", err, "productID", productID)
		return nil, err
	}
	days, err := lockDays(ctx, tx, product, start, end, e.policy)
	if err != nil {
		logger.ExitMethodWithError("reservationEngine.ReserveTx", err, "productID", productID)
		return nil, err
	}

	minAvailable := days[0].AvailableQuantity
	var conflicts []domain.Date
	for _, d := range days {
		if d.AvailableQuantity < minAvailable {
			minAvailable = d.AvailableQuantity
		}
		if d.AvailableQuantity < quantity {
			conflicts = append(conflicts, d.Day)
		}
	}
	if len(conflicts) > 0 {
		capErr := &domain.CapacityError{
			ProductID:        productID,
			Requested:        quantity,
			MinAvailable:     minAvailable,
			ConflictingDates: conflicts,
		}
		logger.ExitMethodWithError("reservationEngine.ReserveTx", capErr)
		return nil, capErr
	}

	reserved := make([]domain.Date, 0, len(days))
	for i := range days {
		if err := days[i].Reserve(quantity, e.policy); err != nil {
			logger.ExitMethodWithError("reservationEngine.ReserveTx", err)
			return nil, err
		}
		if err := tx.Availability().Save(ctx, &days[i]); err != nil {
			logger.ExitMethodWithError("reservationEngine.ReserveTx", err)
			return nil, err
		}
		reserved = append(reserved, days[i].Day)
	}

	logger.ExitMethod("reservationEngine.ReserveTx", "productID", productID, "days", len(reserved))
	return &domain.ReservationResult{ProductID: productID, Quantity: quantity, ReservedDates: reserved}, nil
}

func (e *reservationEngine) Release(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.ReleaseResult, error) {
	ctx, span := tracer.Start(ctx, "ReservationEngine.Release", rangeAttributes(productID, start, end, quantity))
	var err error
	defer func() { endSpan(span, err) }()

	var result *domain.ReleaseResult
	err = RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return e.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			var txErr error
			result, txErr = e.ReleaseTx(ctx, tx, productID, start, end, quantity)
			return txErr
		})
	}, e.retry.options("ReservationEngine.Release")...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReleaseTx returns quantity to every day of the range, clamping reserved
// counts at zero so repeated releases are harmless.
func (e *reservationEngine) ReleaseTx(ctx context.Context, tx repository.Tx, productID string, start, end domain.Date, quantity int) (*domain.ReleaseResult, error) {
	logger.EnterMethod("reservationEngine.ReleaseTx", "productID", productID, "start", start, "end", end, "quantity", quantity)

	if err := validateRequest(start, end, quantity, e.policy); err != nil {
		logger.ExitMethodWithError("reservationEngine.ReleaseTx", err)
		return nil, err
	}
	product, err := tx.Products().GetByID(ctx, productID)
	if err != nil {
		logger.ExitMethodWithError("reservationEngine.ReleaseTx", err, "productID", productID)
		return nil, err
	}
	days, err := lockDays(ctx, tx, product, start, end, e.policy)
	if err != nil {
		logger.ExitMethodWithError("reservationEngine.ReleaseTx", err, "productID", productID)
		return nil, err
	}

	released := make([]domain.Date, 0, len(days))
	for i := range days {
		days[i].Release(quantity, e.policy)
		if err := tx.Availability().Save(ctx, &days[i]); err != nil {
			logger.ExitMethodWithError("reservationEngine.ReleaseTx", err)
			return nil, err
		}
		released = append(released, days[i].Day)
	}

	logger.ExitMethod("reservationEngine.ReleaseTx", "productID", productID, "days", len(released))
	return &domain.ReleaseResult{ProductID: productID, Quantity: quantity, ReleasedDates: released}, nil
}
