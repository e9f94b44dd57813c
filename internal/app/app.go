// Package app wires configuration, storage and services into the object graph
// shared by the server, cronjob and invoicer binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-inventory-backend/internal/config"
	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/events"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/repository/sqlstore"
	"rental-inventory-backend/internal/service"
)

// InvoicingSinkName names the in-process sink that feeds the invoice service.
const InvoicingSinkName = "invoicing"

type App struct {
	Config *config.Config
	Store  *sqlstore.Store

	Ledger   service.AvailabilityLedger
	Engine   service.ReservationEngine
	Products service.ProductService
	Orders   service.OrderService
	Invoices service.InvoiceService

	Dispatcher *events.Dispatcher

	closers []func() error
}

// New opens the database and builds every service. When Kafka is configured,
// outbox events go to the topic and invoicing is left to the invoicer
// consumer; otherwise they are handed to the invoice service in process.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := Build(cfg, store, time.Now)
	a.closers = append(a.closers, store.Close)

	sinks := []events.Sink{}
	if cfg.Kafka.Enabled() {
		writer := events.NewKafkaWriter(KafkaConfig(cfg))
		sink := events.NewKafkaSink(writer, cfg.Kafka.Topic)
		sinks = append(sinks, sink)
		a.closers = append([]func() error{sink.Close}, a.closers...)
		logger.Info("Publishing order events to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		sinks = append(sinks, events.NewHandlerSink(InvoicingSinkName, a.Invoices.HandleEvent))
		logger.Info("Kafka not configured, invoicing order events in process")
	}
	a.Dispatcher = events.NewDispatcher(store.Outbox(), cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts, sinks...)
	return a, nil
}

// OpenStore connects to the configured database.
func OpenStore(ctx context.Context, cfg *config.Config) (*sqlstore.Store, error) {
	logger.Info("Connecting to database...", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "database", cfg.Database.Database)
	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
		LockTimeout:     cfg.Database.LockTimeout(),
		AutoMigrate:     cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Database connection established")
	return store, nil
}

// Build creates the services over an open store. It sets no dispatcher.
func Build(cfg *config.Config, store *sqlstore.Store, clock service.Clock) *App {
	policy := domain.StatusPolicy{
		LimitedRatio: cfg.Reservation.LimitedRatio,
		MaxRangeDays: cfg.Reservation.MaxRangeDays,
	}
	retry := service.RetryPolicy{
		MaxAttempts:  cfg.Reservation.RetryMaxAttempts,
		BaseDelay:    cfg.Reservation.RetryBaseDelay(),
		JitterFactor: cfg.Reservation.RetryJitter,
	}
	fees := service.FeeSettings{
		DefaultLateFeePerDay: cfg.Fees.DefaultLateFeePerDay,
		Location:             cfg.Location(),
	}

	a := &App{Config: cfg, Store: store}
	a.Ledger = service.NewAvailabilityLedger(store, policy, retry)
	a.Engine = service.NewReservationEngine(store, policy, retry)
	a.Products = service.NewProductService(store, a.Ledger, retry, fees, clock)
	a.Orders = service.NewOrderService(store, a.Engine, retry, fees, clock)
	a.Invoices = service.NewInvoiceService(store, retry)
	return a
}

// KafkaConfig converts the configured Kafka section for the events package.
func KafkaConfig(cfg *config.Config) events.KafkaConfig {
	return events.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		GroupID:      cfg.Kafka.GroupID,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout(),
	}
}

// Close releases the Kafka writer and the database.
func (a *App) Close() error {
	var errs error
	for _, c := range a.closers {
		errs = errors.Join(errs, c())
	}
	return errs
}
