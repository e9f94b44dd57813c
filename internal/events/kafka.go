package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Producer is the subset of *kafka.Writer the sink needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is the subset of *kafka.Reader the consumer loop needs.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	BatchSize    int
	BatchTimeout time.Duration
}

func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
}

// KafkaSink publishes outbox events to a topic.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

func (s *KafkaSink) Publish(ctx context.Context, events []domain.OutboxEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := ToMessage(ctx, e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	logger.ExternalServiceCall("kafka", "WriteMessages", "topic", s.topic, "count", len(msgs))
	err := s.producer.WriteMessages(ctx, msgs...)
	logger.ExternalServiceResult("kafka", "WriteMessages", err, "topic", s.topic)
	return err
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

// Consume reads events until ctx is cancelled, committing each message after
// handle succeeds. Undecodable messages are logged and committed.
func Consume(ctx context.Context, consumer Consumer, handle func(ctx context.Context, e domain.OutboxEvent) error) error {
	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		msgCtx, event, err := FromMessage(ctx, msg)
		if err != nil {
			logger.WithComponent("kafka-consumer").ErrorContext(ctx, "Skipping malformed event message", "offset", msg.Offset, "error", err)
		} else {
			handleCtx, span := tracer.Start(msgCtx, "consume "+string(event.EventType))
			err = handle(handleCtx, event)
			span.End()
			if err != nil {
				return fmt.Errorf("handle event %s: %w", event.ID, err)
			}
		}

		if err := consumer.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}
