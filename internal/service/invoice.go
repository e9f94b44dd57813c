package service

import (
	"context"
	"fmt"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/events"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type invoiceService struct {
	store repository.Store
	retry RetryPolicy
}

func NewInvoiceService(store repository.Store, retry RetryPolicy) InvoiceService {
	return &invoiceService{store: store, retry: retry}
}

// HandleEvent turns billing events into invoices. Each event produces at most
// one invoice no matter how often it is delivered; other event types are ignored.
func (s *invoiceService) HandleEvent(ctx context.Context, event domain.OutboxEvent) (err error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.HandleEvent", trace.WithAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("event.type", string(event.EventType)),
	))
	defer func() { endSpan(span, err) }()

	inv := &domain.Invoice{OrderID: event.OrderID, EventID: event.ID}
	switch event.EventType {
	case domain.EventInvoiceRequested:
		payload, err := events.DecodePayload[domain.InvoiceRequested](event)
		if err != nil {
			return err
		}
		inv.PaymentType = payload.PaymentType
		inv.Amount = payload.Amount
	case domain.EventLateFeeAssessed:
		payload, err := events.DecodePayload[domain.LateFeeAssessed](event)
		if err != nil {
			return err
		}
		inv.PaymentType = domain.PaymentTypeLateFee
		inv.Amount = payload.Amount
	default:
		return nil
	}

	if inv.Amount < 0 {
		return fmt.Errorf("%w: event %s carries a negative amount", domain.ErrInvalidArgument, event.ID)
	}
	if inv.Amount == 0 {
		inv.Status = domain.InvoiceStatusPaid
	}

	created, err := s.store.Invoices().CreateIfAbsent(ctx, inv)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create invoice", "eventID", event.ID, "orderID", event.OrderID, "error", err)
		return err
	}
	if !created {
		logger.DebugContext(ctx, "Invoice already exists for event", "eventID", event.ID)
		return nil
	}
	logger.InfoContext(ctx, "Invoice created", "invoiceID", inv.ID, "orderID", inv.OrderID,
		"paymentType", inv.PaymentType, "amount", inv.Amount)
	return nil
}

func (s *invoiceService) RecordPayment(ctx context.Context, invoiceID string, amount int64) (*domain.Invoice, error) {
	logger.EnterMethod("invoiceService.RecordPayment", "invoiceID", invoiceID, "amount", amount)
	if amount <= 0 {
		err := fmt.Errorf("%w: payment amount must be positive", domain.ErrInvalidArgument)
		logger.ExitMethodWithError("invoiceService.RecordPayment", err)
		return nil, err
	}

	var invoice *domain.Invoice
	err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			inv, err := tx.Invoices().GetByIDForUpdate(ctx, invoiceID)
			if err != nil {
				return err
			}
			if remaining := inv.Amount - inv.PaidAmount; amount > remaining {
				return fmt.Errorf("%w: payment of %d exceeds the %d still due on invoice %s",
					domain.ErrInvalidArgument, amount, remaining, invoiceID)
			}
			inv.PaidAmount += amount
			if inv.PaidAmount >= inv.Amount {
				inv.Status = domain.InvoiceStatusPaid
			}
			if err := tx.Invoices().Update(ctx, inv); err != nil {
				return err
			}
			if err := tx.Invoices().AddPayment(ctx, &domain.Payment{InvoiceID: inv.ID, Amount: amount}); err != nil {
				return err
			}
			invoice = inv
			return nil
		})
	}, s.retry.options("InvoiceService.RecordPayment")...)
	if err != nil {
		logger.ExitMethodWithError("invoiceService.RecordPayment", err, "invoiceID", invoiceID)
		return nil, err
	}

	logger.ExitMethod("invoiceService.RecordPayment", "invoiceID", invoiceID, "status", invoice.Status)
	return invoice, nil
}

// ListInvoices returns NotFoundError for an unknown order rather than an empty list.
func (s *invoiceService) ListInvoices(ctx context.Context, orderID string) ([]domain.Invoice, error) {
	if _, err := s.store.Orders().GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.Invoices().ListByOrder(ctx, orderID)
}

// Balance nets refunds against charges on both the owed and paid side.
func (s *invoiceService) Balance(ctx context.Context, orderID string) (*domain.Balance, error) {
	invoices, err := s.ListInvoices(ctx, orderID)
	if err != nil {
		return nil, err
	}
	b := &domain.Balance{OrderID: orderID}
	for _, inv := range invoices {
		if inv.PaymentType == domain.PaymentTypeRefund {
			b.Owed -= inv.Amount
			b.Paid -= inv.PaidAmount
			continue
		}
		b.Owed += inv.Amount
		b.Paid += inv.PaidAmount
	}
	b.Outstanding = b.Owed - b.Paid
	return b, nil
}
