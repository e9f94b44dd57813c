package service

import (
	"context"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/pricing"
	"rental-inventory-backend/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("rental-inventory-backend/service")

// Clock returns the current time. Services take one so tests can fix "now".
type Clock func() time.Time

// FeeSettings holds the system-wide late fee configuration.
type FeeSettings struct {
	DefaultLateFeePerDay int64
	Location             *time.Location
}

func (f FeeSettings) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

type AvailabilityLedger interface {
	GetOrCreate(ctx context.Context, productID string, day domain.Date) (*domain.AvailabilityDay, error)
	Read(ctx context.Context, productID string, start, end domain.Date) ([]domain.AvailabilityDay, error)
	AdjustTotal(ctx context.Context, productID string, from, to domain.Date, newTotal int) error
	AdjustTotalTx(ctx context.Context, tx repository.Tx, productID string, from, to domain.Date, newTotal int) error
}

type ReservationEngine interface {
	CheckAvailability(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.AvailabilityResult, error)
	Reserve(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.ReservationResult, error)
	Release(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.ReleaseResult, error)
	ReserveTx(ctx context.Context, tx repository.Tx, productID string, start, end domain.Date, quantity int) (*domain.ReservationResult, error)
	ReleaseTx(ctx context.Context, tx repository.Tx, productID string, start, end domain.Date, quantity int) (*domain.ReleaseResult, error)
}

type ProductService interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SetOwnedQuantity(ctx context.Context, id string, quantity int) (*domain.Product, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.RentalOrder, error)
	GetOrder(ctx context.Context, id string) (*domain.RentalOrder, error)
	ConfirmOrder(ctx context.Context, id string) (*domain.RentalOrder, error)
	StartRental(ctx context.Context, id string) (*domain.RentalOrder, error)
	CompleteRental(ctx context.Context, id string, req domain.CompleteRequest) (*domain.RentalOrder, error)
	CancelOrder(ctx context.Context, id string, reason string) (*domain.RentalOrder, error)
	ExtendOrder(ctx context.Context, id string, newReturnDate domain.Date, additionalAmount int64) (*domain.RentalOrder, error)
	ShortenOrder(ctx context.Context, id string, newReturnDate domain.Date, creditAmount int64) (*domain.RentalOrder, error)
	LateFee(ctx context.Context, id string) (*pricing.LateFeeResult, error)
	Snapshot(ctx context.Context, id string) (*domain.OrderSnapshot, error)
	ReportOverdue(ctx context.Context) (int, error)
}

type InvoiceService interface {
	HandleEvent(ctx context.Context, event domain.OutboxEvent) error
	RecordPayment(ctx context.Context, invoiceID string, amount int64) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, orderID string) ([]domain.Invoice, error)
	Balance(ctx context.Context, orderID string) (*domain.Balance, error)
}

// Renderer turns an order snapshot into a document (quotation, receipt).
// Implementations live outside this module.
type Renderer interface {
	Render(ctx context.Context, snapshot domain.OrderSnapshot) ([]byte, error)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
