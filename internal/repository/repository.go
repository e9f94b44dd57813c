package repository

import (
	"context"

	"rental-inventory-backend/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	List(ctx context.Context) ([]domain.Product, error)
}

// AvailabilityRepository persists the per-day ledger. LockRange must be
// called inside a transaction; rows come back ordered by day.
type AvailabilityRepository interface {
	// Ensure inserts the given days, leaving already existing rows untouched.
	Ensure(ctx context.Context, days []domain.AvailabilityDay) error
	// ListRange reads the stored rows of [start, end] without creating any.
	ListRange(ctx context.Context, productID string, start, end domain.Date) ([]domain.AvailabilityDay, error)
	// LockRange reads [start, end] with row locks. A zero end locks every row from start on.
	LockRange(ctx context.Context, productID string, start, end domain.Date) ([]domain.AvailabilityDay, error)
	Save(ctx context.Context, day *domain.AvailabilityDay) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.RentalOrder) error
	GetByID(ctx context.Context, id string) (*domain.RentalOrder, error)
	// GetByIDForUpdate loads the order and locks its row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.RentalOrder, error)
	Update(ctx context.Context, order *domain.RentalOrder) error
	UpdateItem(ctx context.Context, item *domain.OrderItem) error
}

type ScheduleRepository interface {
	Create(ctx context.Context, event *domain.ScheduledEvent) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.ScheduledEvent, error)
	// ListDue returns scheduled records of kind due strictly before the given day.
	ListDue(ctx context.Context, kind domain.ScheduleKind, before domain.Date) ([]domain.ScheduledEvent, error)
	Update(ctx context.Context, event *domain.ScheduledEvent) error
}

type OutboxRepository interface {
	Append(ctx context.Context, event *domain.OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string, maxAttempts int) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OutboxEvent, error)
}

type InvoiceRepository interface {
	// CreateIfAbsent stores the invoice unless one already exists for its event id.
	CreateIfAbsent(ctx context.Context, invoice *domain.Invoice) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Invoice, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Invoice, error)
	Update(ctx context.Context, invoice *domain.Invoice) error
	AddPayment(ctx context.Context, payment *domain.Payment) error
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Products() ProductRepository
	Availability() AvailabilityRepository
	Orders() OrderRepository
	Schedules() ScheduleRepository
	Outbox() OutboxRepository
	Invoices() InvoiceRepository
}

type TxManager interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store gives non-transactional access to the repositories plus transactions.
type Store interface {
	Tx
	TxManager
}
