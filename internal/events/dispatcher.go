package events

import (
	"context"
	"errors"
	"fmt"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("rental-inventory-backend/events")

// Sink receives dispatched outbox events. Delivery is at least once, so
// sinks must tolerate duplicates.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []domain.OutboxEvent) error
}

// HandlerSink adapts an in-process event handler to a Sink.
type HandlerSink struct {
	name   string
	handle func(ctx context.Context, e domain.OutboxEvent) error
}

func NewHandlerSink(name string, handle func(ctx context.Context, e domain.OutboxEvent) error) *HandlerSink {
	return &HandlerSink{name: name, handle: handle}
}

func (s *HandlerSink) Name() string { return s.name }

func (s *HandlerSink) Publish(ctx context.Context, events []domain.OutboxEvent) error {
	var errs error
	for _, e := range events {
		if err := s.handle(ctx, e); err != nil {
			errs = errors.Join(errs, fmt.Errorf("event %s: %w", e.ID, err))
		}
	}
	return errs
}

type DispatchStats struct {
	Dispatched int
	Failed     int
}

// Dispatcher moves pending outbox events to the configured sinks.
type Dispatcher struct {
	outbox      repository.OutboxRepository
	sinks       []Sink
	batchSize   int
	maxAttempts int
}

func NewDispatcher(outbox repository.OutboxRepository, batchSize, maxAttempts int, sinks ...Sink) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{outbox: outbox, sinks: sinks, batchSize: batchSize, maxAttempts: maxAttempts}
}

// DispatchPending publishes one batch of pending events. An event is marked
// dispatched only when every sink accepted it.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchStats, error) {
	ctx, span := tracer.Start(ctx, "outbox.dispatch")
	defer span.End()
	log := logger.WithComponent("outbox")

	var stats DispatchStats
	pending, err := d.outbox.ListPending(ctx, d.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, fmt.Errorf("list pending outbox events: %w", err)
	}
	span.SetAttributes(attribute.Int("outbox.pending", len(pending)))
	if len(pending) == 0 {
		return stats, nil
	}

	for _, e := range pending {
		var sinkErr error
		for _, sink := range d.sinks {
			if err := sink.Publish(ctx, []domain.OutboxEvent{e}); err != nil {
				sinkErr = errors.Join(sinkErr, fmt.Errorf("%s: %w", sink.Name(), err))
			}
		}

		if sinkErr != nil {
			stats.Failed++
			log.WarnContext(ctx, "Outbox event delivery failed",
				"event_id", e.ID, "event_type", e.EventType, "attempt", e.Attempts+1, "error", sinkErr)
			if err := d.outbox.MarkFailed(ctx, e.ID, sinkErr.Error(), d.maxAttempts); err != nil {
				return stats, fmt.Errorf("mark outbox event %s failed: %w", e.ID, err)
			}
			continue
		}

		if err := d.outbox.MarkDispatched(ctx, e.ID); err != nil {
			return stats, fmt.Errorf("mark outbox event %s dispatched: %w", e.ID, err)
		}
		stats.Dispatched++
	}

	span.SetAttributes(
		attribute.Int("outbox.dispatched", stats.Dispatched),
		attribute.Int("outbox.failed", stats.Failed),
	)
	if stats.Failed > 0 {
		span.AddEvent("delivery failures", trace.WithAttributes(attribute.Int("count", stats.Failed)))
	}
	log.InfoContext(ctx, "Outbox dispatch finished", "dispatched", stats.Dispatched, "failed", stats.Failed)
	return stats, nil
}
