package sqlstore

import (
	"context"

	"rental-inventory-backend/internal/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const tableOutbox = "outbox_events"

var outboxColumns = []interface{}{"id", "event_type", "order_id", "payload", "status", "attempts", "last_error"}

type outboxRepository struct {
	queries
}

func (r *outboxRepository) Append(ctx context.Context, e *domain.OutboxEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = domain.OutboxStatusPending
	}
	ds := r.dialect.Insert(tableOutbox).Prepared(true).Rows(goqu.Record{
		"id":         e.ID,
		"sequence":   nextSequence(),
		"event_type": string(e.EventType),
		"order_id":   e.OrderID,
		"payload":    e.Payload,
		"status":     string(e.Status),
		"attempts":   e.Attempts,
		"last_error": e.LastError,
	})
	_, err := r.exec(ctx, "AppendOutbox", ds)
	return err
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	var events []domain.OutboxEvent
	ds := r.dialect.From(tableOutbox).Prepared(true).Select(outboxColumns...).
		Where(goqu.C("status").Eq(string(domain.OutboxStatusPending))).
		Order(goqu.C("sequence").Asc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if err := r.selectAll(ctx, "ListPendingOutbox", &events, ds); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OutboxEvent, error) {
	var events []domain.OutboxEvent
	ds := r.dialect.From(tableOutbox).Prepared(true).Select(outboxColumns...).
		Where(goqu.C("order_id").Eq(orderID)).
		Order(goqu.C("sequence").Asc(), goqu.C("id").Asc())
	if err := r.selectAll(ctx, "ListOutboxByOrder", &events, ds); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, id string) error {
	ds := r.dialect.Update(tableOutbox).Prepared(true).Set(goqu.Record{
		"status":        string(domain.OutboxStatusDispatched),
		"dispatched_at": goqu.L("CURRENT_TIMESTAMP"),
	}).Where(goqu.C("id").Eq(id))
	n, err := r.exec(ctx, "MarkOutboxDispatched", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("outbox event", id)
	}
	return nil
}

// MarkFailed records a failed delivery. The event leaves the pending queue
// once maxAttempts is reached; maxAttempts <= 0 retries forever.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string, maxAttempts int) error {
	record := goqu.Record{
		"attempts":   goqu.L("attempts + 1"),
		"last_error": reason,
	}
	if maxAttempts > 0 {
		record["status"] = goqu.L("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END",
			maxAttempts, string(domain.OutboxStatusFailed), string(domain.OutboxStatusPending))
	}
	ds := r.dialect.Update(tableOutbox).Prepared(true).Set(record).Where(goqu.C("id").Eq(id))
	n, err := r.exec(ctx, "MarkOutboxFailed", ds)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("outbox event", id)
	}
	return nil
}
