package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rental-inventory-backend/internal/config"
	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/events"
	"rental-inventory-backend/internal/pricing"
	"rental-inventory-backend/internal/repository"
	"rental-inventory-backend/internal/repository/sqlstore"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type testEnv struct {
	store    *sqlstore.Store
	ledger   AvailabilityLedger
	engine   ReservationEngine
	products ProductService
	orders   OrderService
	invoices InvoiceService
	now      time.Time
}

func testRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlx.Open(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	// one connection keeps the in-memory database shared and serialises transactions
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := sqlstore.New(db, sqlstore.DriverSQLite, 0)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return buildTestEnv(s, testRetry())
}

// newFileTestEnv opens an on-disk database through the configured DSN with a
// pool of maxConns connections, so transactions from different goroutines
// really overlap.
func newFileTestEnv(t *testing.T, maxConns int, retry RetryPolicy) *testEnv {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver: sqlstore.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "rental.db"),
	}}
	s, err := sqlstore.Open(context.Background(), sqlstore.Options{
		Driver:       sqlstore.DriverSQLite,
		DSN:          cfg.GetDatabaseDSN(),
		MaxOpenConns: maxConns,
		MaxIdleConns: maxConns,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return buildTestEnv(s, retry)
}

func buildTestEnv(s *sqlstore.Store, retry RetryPolicy) *testEnv {
	env := &testEnv{store: s, now: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }
	fees := FeeSettings{DefaultLateFeePerDay: pricing.DefaultLateFeePerDay, Location: time.UTC}

	env.ledger = NewAvailabilityLedger(s, domain.DefaultStatusPolicy, retry)
	env.engine = NewReservationEngine(s, domain.DefaultStatusPolicy, retry)
	env.products = NewProductService(s, env.ledger, retry, fees, clock)
	env.orders = NewOrderService(s, env.engine, retry, fees, clock)
	env.invoices = NewInvoiceService(s, retry)
	return env
}

func (e *testEnv) product(t *testing.T, owned int, rate int64) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: "Round table", OwnedQuantity: owned, RentalUnit: domain.RentalUnitDay, BaseRate: rate}
	require.NoError(t, e.products.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) reserved(t *testing.T, productID string, start, end domain.Date) []int {
	t.Helper()
	days, err := e.store.Availability().ListRange(context.Background(), productID, start, end)
	require.NoError(t, err)
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = d.ReservedQuantity
	}
	return out
}

func (e *testEnv) outbox(t *testing.T, orderID string) []domain.OutboxEvent {
	t.Helper()
	list, err := e.store.Outbox().ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return list
}

func invoiceRequests(t *testing.T, list []domain.OutboxEvent) []domain.InvoiceRequested {
	t.Helper()
	var out []domain.InvoiceRequested
	for _, e := range list {
		if e.EventType != domain.EventInvoiceRequested {
			continue
		}
		p, err := events.DecodePayload[domain.InvoiceRequested](e)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func date(s string) domain.Date {
	return domain.MustParseDate(s)
}

// conflictingStore fails the first failures transactions with a lock conflict.
type conflictingStore struct {
	*sqlstore.Store
	failures int
	calls    int
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.calls++
	if s.calls <= s.failures {
		return conflict()
	}
	return s.Store.WithinTx(ctx, fn)
}

type MockInvoiceRepo struct {
	mock.Mock
}

func (m *MockInvoiceRepo) CreateIfAbsent(ctx context.Context, inv *domain.Invoice) (bool, error) {
	args := m.Called(ctx, inv)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.Invoice, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepo) AddPayment(ctx context.Context, p *domain.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// invoiceOnlyStore serves invoices from a mock; every other repository is absent.
type invoiceOnlyStore struct {
	invoices *MockInvoiceRepo
}

func (s *invoiceOnlyStore) Products() repository.ProductRepository         { return nil }
func (s *invoiceOnlyStore) Availability() repository.AvailabilityRepository { return nil }
func (s *invoiceOnlyStore) Orders() repository.OrderRepository             { return nil }
func (s *invoiceOnlyStore) Schedules() repository.ScheduleRepository       { return nil }
func (s *invoiceOnlyStore) Outbox() repository.OutboxRepository            { return nil }
func (s *invoiceOnlyStore) Invoices() repository.InvoiceRepository         { return s.invoices }

func (s *invoiceOnlyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, s)
}
