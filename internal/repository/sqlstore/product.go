package sqlstore

import (
	"context"

	"rental-inventory-backend/internal/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const tableProducts = "products"

var productColumns = []interface{}{"id", "name", "owned_quantity", "rental_unit", "base_rate", "late_fee_per_day"}

type productRepository struct {
	queries
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ds := r.dialect.Insert(tableProducts).Prepared(true).Rows(goqu.Record{
		"id":               p.ID,
		"name":             p.Name,
		"owned_quantity":   p.OwnedQuantity,
		"rental_unit":      string(p.RentalUnit),
		"base_rate":        p.BaseRate,
		"late_fee_per_day": p.LateFeePerDay,
	})
	_, err := r.exec(ctx, "CreateProduct", ds)
	return err
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}
	ds := r.dialect.From(tableProducts).Prepared(true).Select(productColumns...).Where(goqu.C("id").Eq(id))
	if err := r.get(ctx, "GetProduct", p, ds); err != nil {
		return nil, notFound("product", id, err)
	}
	return p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []domain.Product
	ds := r.dialect.From(tableProducts).Prepared(true).Select(productColumns...).
		Where(goqu.C("id").In(ids)).
		Order(goqu.C("id").Asc())
	if err := r.selectAll(ctx, "GetProducts", &products, ds); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	ds := r.dialect.Update(tableProducts).Prepared(true).Set(goqu.Record{
		"name":             p.Name,
		"owned_quantity":   p.OwnedQuantity,
		"rental_unit":      string(p.RentalUnit),
		"base_rate":        p.BaseRate,
		"late_fee_per_day": p.LateFeePerDay,
		"updated_at":       goqu.L("CURRENT_TIMESTAMP"),
	}).Where(goqu.C("id").Eq(p.ID))
	n, err := r.exec(ctx, "UpdateProduct", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("product", p.ID)
	}
	return nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	ds := r.dialect.From(tableProducts).Prepared(true).Select(productColumns...).Order(goqu.C("name").Asc(), goqu.C("id").Asc())
	if err := r.selectAll(ctx, "ListProducts", &products, ds); err != nil {
		return nil, err
	}
	return products, nil
}
