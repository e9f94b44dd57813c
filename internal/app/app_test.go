package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"rental-inventory-backend/internal/config"
	"rental-inventory-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InProcessInvoicing(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
  max_open_conns: 1
  auto_migrate: true
`, filepath.Join(t.TempDir(), "rental.db"))))
	require.NoError(t, err)
	require.False(t, cfg.Kafka.Enabled())

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	p := &domain.Product{Name: "Stage riser", OwnedQuantity: 4, BaseRate: 2500}
	require.NoError(t, a.Products.CreateProduct(ctx, p))

	o, err := a.Orders.CreateOrder(ctx, domain.CreateOrderRequest{
		CustomerID:    "cust-7",
		Source:        domain.OrderSourceDirect,
		PickupDate:    domain.MustParseDate("2030-01-10"),
		ReturnDate:    domain.MustParseDate("2030-01-12"),
		DepositAmount: 5000,
		Items:         []domain.OrderItemRequest{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)

	stats, err := a.Dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.GreaterOrEqual(t, stats.Dispatched, 2)

	invoices, err := a.Invoices.ListInvoices(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, domain.PaymentTypeDeposit, invoices[0].PaymentType)
	assert.Equal(t, int64(5000), invoices[0].Amount)

	stats, err = a.Dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Dispatched)
}

func TestNew_RangeLimitFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
  auto_migrate: true
reservation:
  max_range_days: 30
`, filepath.Join(t.TempDir(), "rental.db"))))
	require.NoError(t, err)

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	p := &domain.Product{Name: "Marquee", OwnedQuantity: 1, BaseRate: 9000}
	require.NoError(t, a.Products.CreateProduct(ctx, p))

	start := domain.MustParseDate("2030-03-01")
	_, err = a.Engine.CheckAvailability(ctx, p.ID, start, start.AddDays(29), 1)
	require.NoError(t, err)
	_, err = a.Engine.CheckAvailability(ctx, p.ID, start, start.AddDays(30), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = a.Ledger.Read(ctx, p.ID, start, start.AddDays(30))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNew_UnreachableDatabase(t *testing.T) {
	cfg, err := config.Parse([]byte(`
database:
  driver: sqlite
  path: /nonexistent-dir/rental.db
`))
	require.NoError(t, err)

	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestKafkaConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
database:
  driver: sqlite
kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
  batch_timeout_ms: 250
`))
	require.NoError(t, err)

	kc := KafkaConfig(cfg)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, kc.Brokers)
	assert.Equal(t, "rental.order-events", kc.Topic)
	assert.Equal(t, "rental-invoicing", kc.GroupID)
	assert.Equal(t, int64(250), kc.BatchTimeout.Milliseconds())
}
