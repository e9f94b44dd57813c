package sqlstore

import (
	"context"

	"rental-inventory-backend/internal/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const tableAvailability = "availability_days"

var availabilityColumns = []interface{}{"product_id", "day", "total_quantity", "reserved_quantity", "available_quantity", "status"}

type availabilityRepository struct {
	queries
}

// ensureBatchRows keeps each insert well below the bind parameter limits of
// SQLite (32766) and Postgres (65535).
const ensureBatchRows = 500

func (r *availabilityRepository) Ensure(ctx context.Context, days []domain.AvailabilityDay) error {
	for start := 0; start < len(days); start += ensureBatchRows {
		end := min(start+ensureBatchRows, len(days))
		rows := make([]interface{}, 0, end-start)
		for _, d := range days[start:end] {
			rows = append(rows, goqu.Record{
				"product_id":         d.ProductID,
				"day":                d.Day,
				"total_quantity":     d.TotalQuantity,
				"reserved_quantity":  d.ReservedQuantity,
				"available_quantity": d.AvailableQuantity,
				"status":             string(d.Status),
			})
		}
		ds := r.dialect.Insert(tableAvailability).Prepared(true).Rows(rows...).OnConflict(goqu.DoNothing())
		if _, err := r.exec(ctx, "EnsureAvailability", ds); err != nil {
			return err
		}
	}
	return nil
}

func (r *availabilityRepository) rangeQuery(productID string, start, end domain.Date) *goqu.SelectDataset {
	where := []exp.Expression{goqu.C("product_id").Eq(productID), goqu.C("day").Gte(start)}
	if !end.IsZero() {
		where = append(where, goqu.C("day").Lte(end))
	}
	return r.dialect.From(tableAvailability).Prepared(true).
		Select(availabilityColumns...).
		Where(where...).
		Order(goqu.C("day").Asc())
}

func (r *availabilityRepository) ListRange(ctx context.Context, productID string, start, end domain.Date) ([]domain.AvailabilityDay, error) {
	var days []domain.AvailabilityDay
	if err := r.selectAll(ctx, "ListAvailability", &days, r.rangeQuery(productID, start, end)); err != nil {
		return nil, err
	}
	return days, nil
}

func (r *availabilityRepository) LockRange(ctx context.Context, productID string, start, end domain.Date) ([]domain.AvailabilityDay, error) {
	var days []domain.AvailabilityDay
	ds := r.rangeQuery(productID, start, end).ForUpdate(exp.Wait)
	if err := r.selectAll(ctx, "LockAvailability", &days, ds); err != nil {
		return nil, err
	}
	return days, nil
}

func (r *availabilityRepository) Save(ctx context.Context, d *domain.AvailabilityDay) error {
	ds := r.dialect.Update(tableAvailability).Prepared(true).Set(goqu.Record{
		"total_quantity":     d.TotalQuantity,
		"reserved_quantity":  d.ReservedQuantity,
		"available_quantity": d.AvailableQuantity,
		"status":             string(d.Status),
		"updated_at":         goqu.L("CURRENT_TIMESTAMP"),
	}).Where(goqu.C("product_id").Eq(d.ProductID), goqu.C("day").Eq(d.Day))
	n, err := r.exec(ctx, "SaveAvailability", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("availability day", d.ProductID+"/"+d.Day.String())
	}
	return nil
}
