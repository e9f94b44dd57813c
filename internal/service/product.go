package service

import (
	"context"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type productService struct {
	store  repository.Store
	ledger AvailabilityLedger
	retry  RetryPolicy
	fees   FeeSettings
	clock  Clock
}

func NewProductService(store repository.Store, ledger AvailabilityLedger, retry RetryPolicy, fees FeeSettings, clock Clock) ProductService {
	if clock == nil {
		clock = time.Now
	}
	return &productService{store: store, ledger: ledger, retry: retry, fees: fees, clock: clock}
}

func (s *productService) CreateProduct(ctx context.Context, product *domain.Product) error {
	logger.EnterMethod("productService.CreateProduct", "name", product.Name)
	if err := product.Validate(); err != nil {
		logger.ExitMethodWithError("productService.CreateProduct", err)
		return err
	}
	if err := s.store.Products().Create(ctx, product); err != nil {
		logger.ExitMethodWithError("productService.CreateProduct", err)
		return err
	}
	logger.ExitMethod("productService.CreateProduct", "productID", product.ID)
	return nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.store.Products().GetByID(ctx, id)
}

func (s *productService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.Products().List(ctx)
}

// SetOwnedQuantity changes how many units of a product exist. Ledger days from
// today on are adjusted in the same transaction; the change is refused when
// any of those days already has more units reserved than the new quantity.
func (s *productService) SetOwnedQuantity(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.SetOwnedQuantity", trace.WithAttributes(
		attribute.String("product.id", id),
		attribute.Int("quantity", quantity),
	))
	var err error
	defer func() { endSpan(span, err) }()

	today := domain.DateOf(s.clock().In(s.fees.location()))

	var product *domain.Product
	err = RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			p, err := tx.Products().GetByID(ctx, id)
			if err != nil {
				return err
			}
			p.OwnedQuantity = quantity
			if err := p.Validate(); err != nil {
				return err
			}
			if err := s.ledger.AdjustTotalTx(ctx, tx, id, today, domain.Date{}, quantity); err != nil {
				return err
			}
			if err := tx.Products().Update(ctx, p); err != nil {
				return err
			}
			product = p
			return nil
		})
	}, s.retry.options("ProductService.SetOwnedQuantity")...)
	if err != nil {
		return nil, err
	}
	logger.Info("Owned quantity changed", "productID", id, "quantity", quantity)
	return product, nil
}
