package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, lockTimeout time.Duration) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := New(sqlx.NewDb(db, DriverPostgres), DriverPostgres, lockTimeout)
	require.NoError(t, err)
	return s, mock
}

func TestNew_UnsupportedDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(sqlx.NewDb(db, "mysql"), "mysql", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestWithinTx_Postgres(t *testing.T) {
	ctx := context.Background()
	start := domain.MustParseDate("2024-06-10")
	end := domain.MustParseDate("2024-06-11")

	t.Run("LocksRangeAndCommits", func(t *testing.T) {
		s, mock := newMockStore(t, 500*time.Millisecond)

		mock.ExpectBegin()
		mock.ExpectExec(`SET LOCAL lock_timeout = '500ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .* FROM "availability_days" WHERE .* ORDER BY "day" ASC FOR UPDATE`).
			WithArgs("p1", "2024-06-10", "2024-06-11").
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "day", "total_quantity", "reserved_quantity", "available_quantity", "status"}).
				AddRow("p1", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), 5, 1, 4, "limited").
				AddRow("p1", time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), 5, 0, 5, "available"))
		mock.ExpectCommit()

		var days []domain.AvailabilityDay
		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			days, err = tx.Availability().LockRange(ctx, "p1", start, end)
			return err
		})
		require.NoError(t, err)
		require.Len(t, days, 2)
		assert.Equal(t, start, days[0].Day)
		assert.Equal(t, 1, days[0].ReservedQuantity)
		assert.Equal(t, domain.AvailabilityStatusLimited, days[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LockTimeoutIsConflict", func(t *testing.T) {
		s, mock := newMockStore(t, 0)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			_, err := tx.Availability().LockRange(ctx, "p1", start, end)
			return err
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))
		assert.True(t, domain.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CallbackErrorRollsBack", func(t *testing.T) {
		s, mock := newMockStore(t, 0)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_Postgres(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByID NotFound", func(t *testing.T) {
		s, mock := newMockStore(t, 0)
		mock.ExpectQuery(`SELECT .* FROM "products" WHERE \("id" = \$1\)`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := s.Products().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		var nf *domain.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "product", nf.Entity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update NotFound", func(t *testing.T) {
		s, mock := newMockStore(t, 0)
		mock.ExpectExec(`UPDATE "products" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Products().Update(ctx, &domain.Product{ID: "missing", Name: "x", RentalUnit: domain.RentalUnitDay})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAvailabilityRepository_EnsureIgnoresExisting(t *testing.T) {
	s, mock := newMockStore(t, 0)
	mock.ExpectExec(`INSERT INTO "availability_days" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	day := domain.NewAvailabilityDay("p1", domain.MustParseDate("2024-06-10"), 3, domain.DefaultStatusPolicy)
	require.NoError(t, s.Availability().Ensure(context.Background(), []domain.AvailabilityDay{day}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"pq lock timeout", &pq.Error{Code: "55P03"}, true},
		{"pq deadlock", &pq.Error{Code: "40P01"}, true},
		{"pq serialization", &pq.Error{Code: "40001"}, true},
		{"pq unique violation", &pq.Error{Code: "23505"}, false},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pgx check violation", &pgconn.PgError{Code: "23514"}, false},
		{"wrapped", errors.Join(errors.New("ctx"), &pgconn.PgError{Code: "55P03"}), true},
		{"plain", errors.New("nope"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConflict(tt.err))
		})
	}
}

func TestNextSequenceIsIncreasing(t *testing.T) {
	prev := nextSequence()
	for i := 0; i < 1000; i++ {
		next := nextSequence()
		require.Greater(t, next, prev)
		prev = next
	}
}
