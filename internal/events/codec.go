package events

import (
	"context"
	"fmt"

	"rental-inventory-backend/internal/domain"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	headerEventType = "event_type"
	headerEventID   = "event_id"
)

var json = jsoniter.ConfigFastest

// Envelope is the wire form of an outbox event on the message bus.
type Envelope struct {
	ID        string              `json:"id"`
	EventType domain.EventType    `json:"eventType"`
	OrderID   string              `json:"orderId"`
	Payload   jsoniter.RawMessage `json:"payload"`
}

// NewOutboxEvent encodes payload into a pending outbox record.
func NewOutboxEvent(eventType domain.EventType, orderID string, payload any) (*domain.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &domain.OutboxEvent{
		EventType: eventType,
		OrderID:   orderID,
		Payload:   string(data),
		Status:    domain.OutboxStatusPending,
	}, nil
}

// DecodePayload decodes the payload of e into T.
func DecodePayload[T any](e domain.OutboxEvent) (T, error) {
	var v T
	if err := json.UnmarshalFromString(e.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload of event %s: %w", e.EventType, e.ID, err)
	}
	return v, nil
}

// ToMessage builds the Kafka message for e, keyed by order so that events of
// one order stay in one partition, and injects the trace context of ctx.
func ToMessage(ctx context.Context, e domain.OutboxEvent) (kafka.Message, error) {
	value, err := json.Marshal(Envelope{
		ID:        e.ID,
		EventType: e.EventType,
		OrderID:   e.OrderID,
		Payload:   jsoniter.RawMessage(e.Payload),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode envelope of event %s: %w", e.ID, err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []kafka.Header{
		{Key: headerEventType, Value: []byte(e.EventType)},
		{Key: headerEventID, Value: []byte(e.ID)},
	}
	for _, k := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
	}

	return kafka.Message{
		Key:     []byte(e.OrderID),
		Value:   value,
		Headers: headers,
	}, nil
}

// FromMessage decodes a Kafka message and returns ctx enriched with the
// producer's trace context.
func FromMessage(ctx context.Context, msg kafka.Message) (context.Context, domain.OutboxEvent, error) {
	carrier := propagation.MapCarrier{}
	for _, h := range msg.Headers {
		carrier[h.Key] = string(h.Value)
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return ctx, domain.OutboxEvent{}, fmt.Errorf("decode envelope at offset %d: %w", msg.Offset, err)
	}
	return ctx, domain.OutboxEvent{
		ID:        env.ID,
		EventType: env.EventType,
		OrderID:   env.OrderID,
		Payload:   string(env.Payload),
		Status:    domain.OutboxStatusDispatched,
	}, nil
}
