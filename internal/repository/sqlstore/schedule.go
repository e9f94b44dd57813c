package sqlstore

import (
	"context"

	"rental-inventory-backend/internal/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const tableSchedules = "scheduled_events"

var scheduleColumns = []interface{}{"id", "order_id", "kind", "due_date", "status"}

type scheduleRepository struct {
	queries
}

func (r *scheduleRepository) Create(ctx context.Context, e *domain.ScheduledEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = domain.ScheduleStatusScheduled
	}
	ds := r.dialect.Insert(tableSchedules).Prepared(true).Rows(goqu.Record{
		"id":       e.ID,
		"order_id": e.OrderID,
		"kind":     string(e.Kind),
		"due_date": e.DueDate,
		"status":   string(e.Status),
	})
	_, err := r.exec(ctx, "CreateSchedule", ds)
	return err
}

func (r *scheduleRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.ScheduledEvent, error) {
	var events []domain.ScheduledEvent
	ds := r.dialect.From(tableSchedules).Prepared(true).Select(scheduleColumns...).
		Where(goqu.C("order_id").Eq(orderID)).
		Order(goqu.C("due_date").Asc(), goqu.C("kind").Desc())
	if err := r.selectAll(ctx, "ListSchedulesByOrder", &events, ds); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *scheduleRepository) ListDue(ctx context.Context, kind domain.ScheduleKind, before domain.Date) ([]domain.ScheduledEvent, error) {
	var events []domain.ScheduledEvent
	ds := r.dialect.From(tableSchedules).Prepared(true).Select(scheduleColumns...).
		Where(
			goqu.C("kind").Eq(string(kind)),
			goqu.C("status").Eq(string(domain.ScheduleStatusScheduled)),
			goqu.C("due_date").Lt(before),
		).
		Order(goqu.C("due_date").Asc(), goqu.C("id").Asc())
	if err := r.selectAll(ctx, "ListDueSchedules", &events, ds); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *scheduleRepository) Update(ctx context.Context, e *domain.ScheduledEvent) error {
	ds := r.dialect.Update(tableSchedules).Prepared(true).Set(goqu.Record{
		"due_date":   e.DueDate,
		"status":     string(e.Status),
		"updated_at": goqu.L("CURRENT_TIMESTAMP"),
	}).Where(goqu.C("id").Eq(e.ID))
	n, err := r.exec(ctx, "UpdateSchedule", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("scheduled event", e.ID)
	}
	return nil
}
