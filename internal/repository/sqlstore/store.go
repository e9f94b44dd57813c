package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/repository"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// Postgres error codes that mean "try again": lock_not_available,
// deadlock_detected and serialization_failure.
var conflictCodes = map[string]bool{
	"55P03": true,
	"40P01": true,
	"40001": true,
}

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LockTimeout     time.Duration
	AutoMigrate     bool
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// queries runs goqu-built statements against either the pool or a transaction.
type queries struct {
	ext     sqlx.ExtContext
	dialect goqu.DialectWrapper
}

func (q queries) Products() repository.ProductRepository         { return &productRepository{q} }
func (q queries) Availability() repository.AvailabilityRepository { return &availabilityRepository{q} }
func (q queries) Orders() repository.OrderRepository             { return &orderRepository{q} }
func (q queries) Schedules() repository.ScheduleRepository       { return &scheduleRepository{q} }
func (q queries) Outbox() repository.OutboxRepository            { return &outboxRepository{q} }
func (q queries) Invoices() repository.InvoiceRepository         { return &invoiceRepository{q} }

func (q queries) exec(ctx context.Context, op string, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("%s: build query: %w", op, err)
	}
	logger.DatabaseCall(op, query)
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult(op, 0, err)
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(op, err)
	}
	logger.DatabaseResult(op, n, nil)
	return n, nil
}

func (q queries) get(ctx context.Context, op string, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}
	logger.DatabaseCall(op, query)
	if err := sqlx.GetContext(ctx, q.ext, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		logger.DatabaseResult(op, 0, err)
		return classify(op, err)
	}
	logger.DatabaseResult(op, 1, nil)
	return nil
}

func (q queries) selectAll(ctx context.Context, op string, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}
	logger.DatabaseCall(op, query)
	if err := sqlx.SelectContext(ctx, q.ext, dest, query, args...); err != nil {
		logger.DatabaseResult(op, 0, err)
		return classify(op, err)
	}
	return nil
}

// Store is the relational implementation of repository.Store.
type Store struct {
	queries
	db          *sqlx.DB
	driver      string
	lockTimeout time.Duration
}

// Open connects using opts and optionally creates the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", opts.Driver, err)
	}

	s, err := New(db, opts.Driver, opts.LockTimeout)
	if err != nil {
		db.Close()
		return nil, err
	}
	if opts.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func New(db *sqlx.DB, driver string, lockTimeout time.Duration) (*Store, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{
		queries:     queries{ext: db, dialect: goqu.Dialect(dialect)},
		db:          db,
		driver:      driver,
		lockTimeout: lockTimeout,
	}, nil
}

func dialectFor(driver string) (string, error) {
	switch driver {
	case DriverPostgres, DriverPgx:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: unsupported database driver %q", domain.ErrInvalidArgument, driver)
	}
}

func (s *Store) isPostgres() bool {
	return s.driver == DriverPostgres || s.driver == DriverPgx
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback()

	if s.isPostgres() && s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return classify("set lock timeout", err)
		}
	}

	if err := fn(ctx, queries{ext: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// classify turns lock and serialization failures into retryable conflicts.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConflict(err) {
		return &domain.ConflictError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return conflictCodes[string(pqErr.Code)]
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return conflictCodes[pgErr.Code]
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

var lastSequence atomic.Int64

// nextSequence returns a strictly increasing, time-based ordering key.
func nextSequence() int64 {
	for {
		last := lastSequence.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if lastSequence.CompareAndSwap(last, next) {
			return next
		}
	}
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(entity, id)
	}
	return err
}

var _ repository.Store = (*Store)(nil)
