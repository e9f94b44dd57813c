package sqlstore

import (
	"context"

	"rental-inventory-backend/internal/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
)

const (
	tableInvoices = "invoices"
	tablePayments = "payments"
)

var invoiceColumns = []interface{}{"id", "order_id", "event_id", "payment_type", "amount", "paid_amount", "status"}

type invoiceRepository struct {
	queries
}

func (r *invoiceRepository) CreateIfAbsent(ctx context.Context, inv *domain.Invoice) (bool, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceStatusOpen
	}
	ds := r.dialect.Insert(tableInvoices).Prepared(true).Rows(goqu.Record{
		"id":           inv.ID,
		"sequence":     nextSequence(),
		"order_id":     inv.OrderID,
		"event_id":     inv.EventID,
		"payment_type": string(inv.PaymentType),
		"amount":       inv.Amount,
		"paid_amount":  inv.PaidAmount,
		"status":       string(inv.Status),
	}).OnConflict(goqu.DoNothing())
	n, err := r.exec(ctx, "CreateInvoice", ds)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *invoiceRepository) byID(id string) *goqu.SelectDataset {
	return r.dialect.From(tableInvoices).Prepared(true).Select(invoiceColumns...).Where(goqu.C("id").Eq(id))
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	if err := r.get(ctx, "GetInvoice", inv, r.byID(id)); err != nil {
		return nil, notFound("invoice", id, err)
	}
	return inv, nil
}

func (r *invoiceRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	if err := r.get(ctx, "LockInvoice", inv, r.byID(id).ForUpdate(exp.Wait)); err != nil {
		return nil, notFound("invoice", id, err)
	}
	return inv, nil
}

func (r *invoiceRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	ds := r.dialect.From(tableInvoices).Prepared(true).Select(invoiceColumns...).
		Where(goqu.C("order_id").Eq(orderID)).
		Order(goqu.C("sequence").Asc(), goqu.C("id").Asc())
	if err := r.selectAll(ctx, "ListInvoicesByOrder", &invoices, ds); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	ds := r.dialect.Update(tableInvoices).Prepared(true).Set(goqu.Record{
		"paid_amount": inv.PaidAmount,
		"status":      string(inv.Status),
		"updated_at":  goqu.L("CURRENT_TIMESTAMP"),
	}).Where(goqu.C("id").Eq(inv.ID))
	n, err := r.exec(ctx, "UpdateInvoice", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("invoice", inv.ID)
	}
	return nil
}

func (r *invoiceRepository) AddPayment(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ds := r.dialect.Insert(tablePayments).Prepared(true).Rows(goqu.Record{
		"id":         p.ID,
		"invoice_id": p.InvoiceID,
		"amount":     p.Amount,
	})
	_, err := r.exec(ctx, "AddPayment", ds)
	return err
}
