package sqlstore

import (
	"context"

	"rental-inventory-backend/internal/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
)

const (
	tableOrders     = "rental_orders"
	tableOrderItems = "rental_order_items"
)

var orderColumns = []interface{}{
	"id", "customer_id", "status", "source", "pickup_date", "return_date",
	"total_amount", "deposit_amount", "late_fee_amount", "damage_charges", "late_fee_per_day",
	"return_condition", "cancel_reason",
}

var orderItemColumns = []interface{}{
	"id", "order_id", "product_id", "quantity", "unit_price", "rental_unit", "start_date", "end_date", "line_total",
}

type orderRepository struct {
	queries
}

func (r *orderRepository) Create(ctx context.Context, o *domain.RentalOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	ds := r.dialect.Insert(tableOrders).Prepared(true).Rows(goqu.Record{
		"id":               o.ID,
		"customer_id":      o.CustomerID,
		"status":           string(o.Status),
		"source":           string(o.Source),
		"pickup_date":      o.PickupDate,
		"return_date":      o.ReturnDate,
		"total_amount":     o.TotalAmount,
		"deposit_amount":   o.DepositAmount,
		"late_fee_amount":  o.LateFeeAmount,
		"damage_charges":   o.DamageCharges,
		"late_fee_per_day": o.LateFeePerDay,
		"return_condition": o.ReturnCondition,
		"cancel_reason":    o.CancelReason,
	})
	if _, err := r.exec(ctx, "CreateOrder", ds); err != nil {
		return err
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = o.ID
		ds := r.dialect.Insert(tableOrderItems).Prepared(true).Rows(goqu.Record{
			"id":          item.ID,
			"order_id":    item.OrderID,
			"product_id":  item.ProductID,
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice,
			"rental_unit": string(item.RentalUnit),
			"start_date":  item.StartDate,
			"end_date":    item.EndDate,
			"line_total":  item.LineTotal,
		})
		if _, err := r.exec(ctx, "CreateOrderItem", ds); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.RentalOrder, error) {
	return r.load(ctx, id, false)
}

func (r *orderRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.RentalOrder, error) {
	return r.load(ctx, id, true)
}

func (r *orderRepository) load(ctx context.Context, id string, lock bool) (*domain.RentalOrder, error) {
	o := &domain.RentalOrder{}
	ds := r.dialect.From(tableOrders).Prepared(true).Select(orderColumns...).Where(goqu.C("id").Eq(id))
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	if err := r.get(ctx, "GetOrder", o, ds); err != nil {
		return nil, notFound("order", id, err)
	}

	items := r.dialect.From(tableOrderItems).Prepared(true).Select(orderItemColumns...).
		Where(goqu.C("order_id").Eq(id)).
		Order(goqu.C("product_id").Asc(), goqu.C("start_date").Asc(), goqu.C("id").Asc())
	if err := r.selectAll(ctx, "GetOrderItems", &o.Items, items); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) Update(ctx context.Context, o *domain.RentalOrder) error {
	ds := r.dialect.Update(tableOrders).Prepared(true).Set(goqu.Record{
		"status":           string(o.Status),
		"pickup_date":      o.PickupDate,
		"return_date":      o.ReturnDate,
		"total_amount":     o.TotalAmount,
		"deposit_amount":   o.DepositAmount,
		"late_fee_amount":  o.LateFeeAmount,
		"damage_charges":   o.DamageCharges,
		"late_fee_per_day": o.LateFeePerDay,
		"return_condition": o.ReturnCondition,
		"cancel_reason":    o.CancelReason,
		"updated_at":       goqu.L("CURRENT_TIMESTAMP"),
	}).Where(goqu.C("id").Eq(o.ID))
	n, err := r.exec(ctx, "UpdateOrder", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("order", o.ID)
	}
	return nil
}

func (r *orderRepository) UpdateItem(ctx context.Context, item *domain.OrderItem) error {
	ds := r.dialect.Update(tableOrderItems).Prepared(true).Set(goqu.Record{
		"quantity":   item.Quantity,
		"start_date": item.StartDate,
		"end_date":   item.EndDate,
		"line_total": item.LineTotal,
	}).Where(goqu.C("id").Eq(item.ID))
	n, err := r.exec(ctx, "UpdateOrderItem", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("order item", item.ID)
	}
	return nil
}
