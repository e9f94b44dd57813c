package service

import (
	"context"
	"fmt"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/events"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/pricing"
	"rental-inventory-backend/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type orderService struct {
	store  repository.Store
	engine ReservationEngine
	retry  RetryPolicy
	fees   FeeSettings
	clock  Clock
}

func NewOrderService(store repository.Store, engine ReservationEngine, retry RetryPolicy, fees FeeSettings, clock Clock) OrderService {
	if clock == nil {
		clock = time.Now
	}
	return &orderService{store: store, engine: engine, retry: retry, fees: fees, clock: clock}
}

func (s *orderService) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	return RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, fn)
	}, s.retry.options(op)...)
}

// mutate loads the order with its row locked, applies fn and persists the
// result in one transaction.
func (s *orderService) mutate(ctx context.Context, op, id string, fn func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error) (order *domain.RentalOrder, err error) {
	method := "OrderService." + op
	ctx, span := tracer.Start(ctx, method, trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()
	logger.EnterMethod(method, "orderID", id)

	err = s.inTx(ctx, method, func(ctx context.Context, tx repository.Tx) error {
		o, err := tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, o); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "orderID", id)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.status", string(order.Status)))
	logger.ExitMethod(method, "orderID", id, "status", order.Status)
	return order, nil
}

func emit(ctx context.Context, tx repository.Tx, eventType domain.EventType, orderID string, payload any) error {
	event, err := events.NewOutboxEvent(eventType, orderID, payload)
	if err != nil {
		return err
	}
	return tx.Outbox().Append(ctx, event)
}

func emitStatusChanged(ctx context.Context, tx repository.Tx, o *domain.RentalOrder, previous domain.OrderStatus) error {
	return emit(ctx, tx, domain.EventOrderStatusChanged, o.ID, domain.OrderStatusChanged{
		OrderID:        o.ID,
		NewStatus:      o.Status,
		PreviousStatus: previous,
	})
}

func emitInvoiceRequested(ctx context.Context, tx repository.Tx, orderID string, paymentType domain.PaymentType, amount int64) error {
	return emit(ctx, tx, domain.EventInvoiceRequested, orderID, domain.InvoiceRequested{
		OrderID:     orderID,
		PaymentType: paymentType,
		Amount:      amount,
	})
}

// updateSchedules applies fn to every still scheduled record of the order,
// restricted to kind unless kind is empty.
func updateSchedules(ctx context.Context, tx repository.Tx, orderID string, kind domain.ScheduleKind, fn func(e *domain.ScheduledEvent)) error {
	records, err := tx.Schedules().ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range records {
		e := &records[i]
		if e.Status != domain.ScheduleStatusScheduled || (kind != "" && e.Kind != kind) {
			continue
		}
		fn(e)
		if err := tx.Schedules().Update(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func productIDs(items []domain.OrderItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (s *orderService) lateFee(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) (pricing.LateFeeResult, error) {
	products, err := tx.Products().GetByIDs(ctx, productIDs(o.Items))
	if err != nil {
		return pricing.LateFeeResult{}, err
	}
	productFees := make([]int64, len(products))
	for i, p := range products {
		productFees[i] = p.LateFeePerDay
	}
	perDay := pricing.ResolveLateFeePerDay(o.LateFeePerDay, productFees, s.fees.DefaultLateFeePerDay)
	return pricing.LateFee(o.ReturnDate, s.clock(), perDay, s.fees.location()), nil
}

func (s *orderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (order *domain.RentalOrder, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("items", len(req.Items)),
	))
	defer func() { endSpan(span, err) }()
	logger.EnterMethod("orderService.CreateOrder", "customerID", req.CustomerID, "items", len(req.Items))

	if err = req.Validate(); err != nil {
		logger.ExitMethodWithError("orderService.CreateOrder", err)
		return nil, err
	}

	err = s.inTx(ctx, "OrderService.CreateOrder", func(ctx context.Context, tx repository.Tx) error {
		o := &domain.RentalOrder{
			CustomerID:    req.CustomerID,
			Status:        domain.OrderStatusPending,
			Source:        req.Source,
			PickupDate:    req.PickupDate,
			ReturnDate:    req.ReturnDate,
			DepositAmount: req.DepositAmount,
			LateFeePerDay: req.LateFeePerDay,
			Items:         make([]domain.OrderItem, 0, len(req.Items)),
		}
		if req.Source == domain.OrderSourceDirect {
			o.Status = domain.OrderStatusConfirmed
		}

		ids := make([]string, len(req.Items))
		for i, r := range req.Items {
			ids[i] = r.ProductID
		}
		products, err := tx.Products().GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]domain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		for i, r := range req.Items {
			product, ok := byID[r.ProductID]
			if !ok {
				return domain.NewNotFound("product", r.ProductID)
			}
			if r.UnitPrice < 0 {
				return fmt.Errorf("%w: item %d unit price must not be negative", domain.ErrInvalidArgument, i)
			}
			item := domain.OrderItem{
				ProductID:  r.ProductID,
				Quantity:   r.Quantity,
				UnitPrice:  r.UnitPrice,
				RentalUnit: r.RentalUnit,
				StartDate:  r.StartDate,
				EndDate:    r.EndDate,
			}
			if item.UnitPrice == 0 {
				item.UnitPrice = product.BaseRate
			}
			if item.RentalUnit == "" {
				item.RentalUnit = product.RentalUnit
			}
			if item.LineTotal, err = pricing.LineTotal(item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			o.TotalAmount += item.LineTotal
			o.Items = append(o.Items, item)
		}

		domain.SortItemsForLocking(o.Items)
		for _, item := range o.Items {
			if _, err := s.engine.ReserveTx(ctx, tx, item.ProductID, item.StartDate, item.EndDate, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if err := emitStatusChanged(ctx, tx, o, ""); err != nil {
			return err
		}
		if o.Status == domain.OrderStatusConfirmed {
			if err := s.confirmed(ctx, tx, o); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.CreateOrder", err, "customerID", req.CustomerID)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.status", string(order.Status)))
	logger.ExitMethod("orderService.CreateOrder", "orderID", order.ID, "status", order.Status, "total", order.TotalAmount)
	return order, nil
}

// confirmed runs the side effects of entering the confirmed status.
func (s *orderService) confirmed(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
	if err := tx.Schedules().Create(ctx, &domain.ScheduledEvent{
		OrderID: o.ID,
		Kind:    domain.ScheduleKindPickup,
		DueDate: o.PickupDate,
	}); err != nil {
		return err
	}
	if o.DepositAmount > 0 {
		return emitInvoiceRequested(ctx, tx, o.ID, domain.PaymentTypeDeposit, o.DepositAmount)
	}
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*domain.RentalOrder, error) {
	return s.store.Orders().GetByID(ctx, id)
}

func (s *orderService) ConfirmOrder(ctx context.Context, id string) (*domain.RentalOrder, error) {
	return s.mutate(ctx, "ConfirmOrder", id, func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
		previous := o.Status
		if err := o.Transition(domain.OrderStatusConfirmed); err != nil {
			return err
		}
		if err := emitStatusChanged(ctx, tx, o, previous); err != nil {
			return err
		}
		return s.confirmed(ctx, tx, o)
	})
}

func (s *orderService) StartRental(ctx context.Context, id string) (*domain.RentalOrder, error) {
	return s.mutate(ctx, "StartRental", id, func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
		previous := o.Status
		if err := o.Transition(domain.OrderStatusInProgress); err != nil {
			return err
		}
		err := updateSchedules(ctx, tx, o.ID, domain.ScheduleKindPickup, func(e *domain.ScheduledEvent) {
			e.Status = domain.ScheduleStatusDone
		})
		if err != nil {
			return err
		}
		if err := tx.Schedules().Create(ctx, &domain.ScheduledEvent{
			OrderID: o.ID,
			Kind:    domain.ScheduleKindReturn,
			DueDate: o.ReturnDate,
		}); err != nil {
			return err
		}
		return emitStatusChanged(ctx, tx, o, previous)
	})
}

func (s *orderService) releaseItems(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
	domain.SortItemsForLocking(o.Items)
	for _, item := range o.Items {
		if _, err := s.engine.ReleaseTx(ctx, tx, item.ProductID, item.StartDate, item.EndDate, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// CompleteRental closes an in-progress rental: inventory goes back to the
// ledger and the final total picks up the late fee and damage charges.
func (s *orderService) CompleteRental(ctx context.Context, id string, req domain.CompleteRequest) (*domain.RentalOrder, error) {
	if req.DamageCharges < 0 || (req.LateFee != nil && *req.LateFee < 0) {
		return nil, fmt.Errorf("%w: charges must not be negative", domain.ErrInvalidArgument)
	}

	return s.mutate(ctx, "CompleteRental", id, func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
		previous := o.Status
		if err := o.Transition(domain.OrderStatusCompleted); err != nil {
			return err
		}
		if err := s.releaseItems(ctx, tx, o); err != nil {
			return err
		}

		fee, err := s.lateFee(ctx, tx, o)
		if err != nil {
			return err
		}
		if req.LateFee != nil {
			fee.Amount = *req.LateFee
		}
		o.LateFeeAmount = fee.Amount
		o.DamageCharges = req.DamageCharges
		o.ReturnCondition = req.ReturnCondition
		o.TotalAmount = pricing.RecalculateTotal(o.TotalAmount, fee.Amount, req.DamageCharges)

		err = updateSchedules(ctx, tx, o.ID, domain.ScheduleKindReturn, func(e *domain.ScheduledEvent) {
			e.Status = domain.ScheduleStatusDone
		})
		if err != nil {
			return err
		}

		if err := emitStatusChanged(ctx, tx, o, previous); err != nil {
			return err
		}
		if fee.Amount > 0 {
			if err := emit(ctx, tx, domain.EventLateFeeAssessed, o.ID, domain.LateFeeAssessed{
				OrderID:  o.ID,
				Amount:   fee.Amount,
				DaysLate: fee.DaysLate,
			}); err != nil {
				return err
			}
		}
		// The late fee is invoiced on its own and the deposit was invoiced at confirmation.
		final := o.TotalAmount - o.LateFeeAmount - o.DepositAmount
		if final < 0 {
			final = 0
		}
		return emitInvoiceRequested(ctx, tx, o.ID, domain.PaymentTypeFinal, final)
	})
}

func (s *orderService) CancelOrder(ctx context.Context, id string, reason string) (*domain.RentalOrder, error) {
	return s.mutate(ctx, "CancelOrder", id, func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
		previous := o.Status
		if err := o.Transition(domain.OrderStatusCancelled); err != nil {
			return err
		}
		if err := s.releaseItems(ctx, tx, o); err != nil {
			return err
		}
		o.CancelReason = reason

		err := updateSchedules(ctx, tx, o.ID, "", func(e *domain.ScheduledEvent) {
			e.Status = domain.ScheduleStatusCancelled
		})
		if err != nil {
			return err
		}

		if err := emitStatusChanged(ctx, tx, o, previous); err != nil {
			return err
		}
		if previous != domain.OrderStatusPending && o.DepositAmount > 0 {
			return emitInvoiceRequested(ctx, tx, o.ID, domain.PaymentTypeRefund, o.DepositAmount)
		}
		return nil
	})
}

// ExtendOrder moves the return date later. The added days are reserved for
// every item that ran until the old return date before anything is stored.
func (s *orderService) ExtendOrder(ctx context.Context, id string, newReturnDate domain.Date, additionalAmount int64) (*domain.RentalOrder, error) {
	if additionalAmount < 0 {
		return nil, fmt.Errorf("%w: additional amount must not be negative", domain.ErrInvalidArgument)
	}

	return s.mutate(ctx, "ExtendOrder", id, func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
		if err := o.RequireModifiable(o.Status); err != nil {
			return err
		}
		oldReturn := o.ReturnDate
		if !newReturnDate.After(oldReturn) {
			return fmt.Errorf("%w: new return date %s must be after %s", domain.ErrInvalidArgument, newReturnDate, oldReturn)
		}

		domain.SortItemsForLocking(o.Items)
		for i := range o.Items {
			item := &o.Items[i]
			if !item.EndDate.Equal(oldReturn) {
				continue
			}
			if _, err := s.engine.ReserveTx(ctx, tx, item.ProductID, oldReturn.AddDays(1), newReturnDate, item.Quantity); err != nil {
				return err
			}
			item.EndDate = newReturnDate
			lineTotal, err := pricing.LineTotal(*item)
			if err != nil {
				return err
			}
			item.LineTotal = lineTotal
			if err := tx.Orders().UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		o.ReturnDate = newReturnDate
		o.TotalAmount += additionalAmount
		err := updateSchedules(ctx, tx, o.ID, domain.ScheduleKindReturn, func(e *domain.ScheduledEvent) {
			e.DueDate = newReturnDate
		})
		if err != nil {
			return err
		}
		if additionalAmount > 0 {
			return emitInvoiceRequested(ctx, tx, o.ID, domain.PaymentTypeExtension, additionalAmount)
		}
		return nil
	})
}

// ShortenOrder moves the return date earlier and releases the days after it.
// Items that would not start until after the new return date block the change.
func (s *orderService) ShortenOrder(ctx context.Context, id string, newReturnDate domain.Date, creditAmount int64) (*domain.RentalOrder, error) {
	if creditAmount < 0 {
		return nil, fmt.Errorf("%w: credit amount must not be negative", domain.ErrInvalidArgument)
	}

	return s.mutate(ctx, "ShortenOrder", id, func(ctx context.Context, tx repository.Tx, o *domain.RentalOrder) error {
		if err := o.RequireModifiable(o.Status); err != nil {
			return err
		}
		if newReturnDate.Before(o.PickupDate) || !newReturnDate.Before(o.ReturnDate) {
			return fmt.Errorf("%w: new return date %s must fall within [%s, %s)",
				domain.ErrInvalidArgument, newReturnDate, o.PickupDate, o.ReturnDate)
		}
		for _, item := range o.Items {
			if item.StartDate.After(newReturnDate) {
				return fmt.Errorf("%w: item %s starts on %s, after the new return date",
					domain.ErrInvalidArgument, item.ID, item.StartDate)
			}
		}

		domain.SortItemsForLocking(o.Items)
		for i := range o.Items {
			item := &o.Items[i]
			if !item.EndDate.After(newReturnDate) {
				continue
			}
			if _, err := s.engine.ReleaseTx(ctx, tx, item.ProductID, newReturnDate.AddDays(1), item.EndDate, item.Quantity); err != nil {
				return err
			}
			item.EndDate = newReturnDate
			lineTotal, err := pricing.LineTotal(*item)
			if err != nil {
				return err
			}
			item.LineTotal = lineTotal
			if err := tx.Orders().UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		o.ReturnDate = newReturnDate
		o.TotalAmount -= creditAmount
		if o.TotalAmount < 0 {
			o.TotalAmount = 0
		}
		err := updateSchedules(ctx, tx, o.ID, domain.ScheduleKindReturn, func(e *domain.ScheduledEvent) {
			e.DueDate = newReturnDate
		})
		if err != nil {
			return err
		}
		if creditAmount > 0 {
			return emitInvoiceRequested(ctx, tx, o.ID, domain.PaymentTypeRefund, creditAmount)
		}
		return nil
	})
}

// LateFee reports the late fee accrued so far. Completed orders report the
// fee that was charged and cancelled orders never accrue one.
func (s *orderService) LateFee(ctx context.Context, id string) (*pricing.LateFeeResult, error) {
	o, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case domain.OrderStatusCompleted:
		return &pricing.LateFeeResult{Amount: o.LateFeeAmount}, nil
	case domain.OrderStatusCancelled:
		return &pricing.LateFeeResult{}, nil
	}
	fee, err := s.lateFee(ctx, s.store, o)
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func (s *orderService) Snapshot(ctx context.Context, id string) (*domain.OrderSnapshot, error) {
	o, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	products, err := s.store.Products().GetByIDs(ctx, productIDs(o.Items))
	if err != nil {
		return nil, err
	}
	return &domain.OrderSnapshot{Order: *o, Products: products}, nil
}

// ReportOverdue emits order.overdue for every in-progress order whose return
// record is past due and returns how many were reported.
func (s *orderService) ReportOverdue(ctx context.Context) (n int, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ReportOverdue")
	defer func() { endSpan(span, err) }()

	today := domain.DateOf(s.clock().In(s.fees.location()))
	due, err := s.store.Schedules().ListDue(ctx, domain.ScheduleKindReturn, today)
	if err != nil {
		return 0, err
	}

	for _, record := range due {
		reported := false
		err = s.inTx(ctx, "OrderService.ReportOverdue", func(ctx context.Context, tx repository.Tx) error {
			reported = false
			o, err := tx.Orders().GetByID(ctx, record.OrderID)
			if err != nil {
				return err
			}
			if o.Status != domain.OrderStatusInProgress {
				return nil
			}
			fee, err := s.lateFee(ctx, tx, o)
			if err != nil {
				return err
			}
			if fee.DaysLate == 0 {
				return nil
			}
			reported = true
			return emit(ctx, tx, domain.EventOrderOverdue, o.ID, domain.OrderOverdue{
				OrderID:        o.ID,
				DaysLate:       fee.DaysLate,
				AccruedLateFee: fee.Amount,
			})
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to report overdue order", "orderID", record.OrderID, "error", err)
			return n, err
		}
		if reported {
			n++
		}
	}

	span.SetAttributes(attribute.Int("overdue", n))
	logger.InfoContext(ctx, "Overdue scan finished", "due", len(due), "reported", n)
	return n, nil
}
